// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package chrapi

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// registryValue reads name from the first IxChariot key present in the
// 32-bit registry view.
func registryValue(name string) (string, error) {
	for _, path := range registryKeys {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE|registry.WOW64_32KEY)
		if err != nil {
			continue
		}
		val, _, err := key.GetStringValue(name)
		key.Close()
		if errors.Is(err, registry.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reading %s\\%s: %w", path, name, err)
		}
		return val, nil
	}
	return "", ErrNotInstalled
}
