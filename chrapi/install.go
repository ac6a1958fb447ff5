// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import (
	"fmt"
	"os"
	"path/filepath"
)

// APIName is the file name of the IxChariot API library.
const APIName = "ChrApi.dll"

var registryKeys = []string{
	`SOFTWARE\Ixia\IxChariot`,
	`SOFTWARE\Ixia Communications\IxChariot`,
}

// LocateAPIDir finds the directory containing ChrApi.dll. It checks path,
// then every PATH entry, then the registered installation directory.
func LocateAPIDir(path string) (string, error) {
	if path != "" && hasAPI(path) {
		return path, nil
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir != "" && hasAPI(dir) {
			return dir, nil
		}
	}
	if dir, err := InstallPath(); err == nil && hasAPI(dir) {
		return dir, nil
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, APIName)
}

// ScriptsDir returns the Scripts directory next to ChrApi.dll.
func ScriptsDir(path string) (string, error) {
	dir, err := LocateAPIDir(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "Scripts"), nil
}

// InstallVersion returns the registered IxChariot version.
func InstallVersion() (Version, error) {
	s, err := registryValue("Version/Release")
	if err != nil {
		return nil, err
	}
	return ParseVersion(s)
}

// InstallPath returns the registered IxChariot installation directory.
func InstallPath() (string, error) {
	return registryValue("Installation Directory")
}

func hasAPI(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, APIName))
	return err == nil && !fi.IsDir()
}
