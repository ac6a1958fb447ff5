// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package chrapi binds IxChariot's ChrApi.dll through declarative call
// signatures.
//
// Every exported DLL function is described once in a [Table] as an ordered
// list of descriptors. A descriptor is either a bare [NativeType], which casts
// the next caller argument directly, or a [Param] built with [ParamIn],
// [ParamOut], [ParamInOut], [StringIn], [StringOut] or [StringInOut]. At call
// time the descriptors expand the caller's arguments into a [Frame], the
// native function runs, and the output cells are decoded into a [Result]:
//
//	table.Define("CHR_pair_get_e1_addr", chrapi.ULong, chrapi.StringOut(chrapi.MaxAddr))
//
//	res, err := binding.Call(ctx, "CHR_pair_get_e1_addr", pair)
//	// res.Code == chrapi.OK, res.Outputs == []any{"172.28.100.80"}
//
// String arguments are encoded with an explicitly configured [Codec]. Strings
// that do not fit the vendor buffer size fail with [ErrStringTooLong]; nothing
// is truncated.
//
// Functions can carry a version constraint ([Function.Since],
// [Function.Until]). [Bind] resolves all symbols up front and only reports a
// missing symbol when the installed IxChariot version says it should exist.
//
// The native loader is only available on Windows. Other platforms get a
// stub [Open] returning [ErrUnsupportedPlatform]; tests use the simulated
// library in package fakedll.
package chrapi
