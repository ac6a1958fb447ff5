// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package bridge carries chrapi calls across a process boundary so that a
// 64-bit host can drive the 32-bit ChrApi.dll.
//
// The worker side ([NewServer], [Register]) exposes every resolved DLL
// export as a vgirpc unary method named after its symbol. Parameters are
// columns arg0, arg1... (one per input descriptor); results are rc followed
// by out0, out1... (one per output descriptor). Two extra methods,
// handshake and functions, report the worker's configuration and catalog.
//
// The host side starts a worker with [StartWorker] (or dials one over HTTP)
// and wraps the client in a [Caller], which behaves like a chrapi.Binding.
package bridge
