// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

func fakeInstall(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, chrapi.APIName), []byte("MZ"), 0o644))
	return dir
}

func TestLocateAPIDirExplicit(t *testing.T) {
	dir := fakeInstall(t)
	t.Setenv("PATH", "")
	got, err := chrapi.LocateAPIDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	scripts, err := chrapi.ScriptsDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Scripts"), scripts)
}

func TestLocateAPIDirFromPath(t *testing.T) {
	dir := fakeInstall(t)
	t.Setenv("PATH", t.TempDir()+string(os.PathListSeparator)+dir)
	got, err := chrapi.LocateAPIDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestLocateAPIDirIgnoresDirectoryNamedLikeDLL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, chrapi.APIName), 0o755))
	t.Setenv("PATH", dir)
	if _, err := chrapi.InstallPath(); err == nil {
		t.Skip("IxChariot is installed on this host")
	}
	_, err := chrapi.LocateAPIDir("")
	assert.ErrorIs(t, err, chrapi.ErrLibraryNotFound)
}
