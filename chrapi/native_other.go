// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package chrapi

import (
	"fmt"
	"runtime"
)

// Open always fails outside Windows.
func Open(dir string) (Library, error) {
	return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
}
