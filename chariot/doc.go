// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package chariot is the session layer over ChrApi.dll.
//
// A [Session] hides where the DLL runs. [Session.Connect] with "localhost"
// loads it in-process on 32-bit Windows, or starts a chariot-worker and
// talks to it over stdio on 64-bit Windows. Any other address names a
// worker serving HTTP. Either way calls go through [Session.Call], which
// accepts short names ("test_new" for CHR_test_new), logs failures with the
// vendor's message text and returns the outputs directly.
//
// The status moves INIT → RPC → API → OK when a worker is started and
// INIT → API → OK otherwise; [WithStatusCallback] observes each change.
package chariot
