// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package chrapi

func registryValue(string) (string, error) {
	return "", ErrNotInstalled
}
