// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chariot

import (
	"context"
	"fmt"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

// output runs Call and asserts its single output to T. When the call
// returns a *CallError the zero value is returned with it.
func output[T any](ctx context.Context, s *Session, name string, args ...any) (T, error) {
	var zero T
	v, err := s.Call(ctx, name, args...)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("chariot: %s returned %T, want %T", chrName(name), v, zero)
	}
	return out, nil
}

func (s *Session) handle(ctx context.Context, name string, args ...any) (chrapi.Handle, error) {
	h, err := output[uint32](ctx, s, name, args...)
	return chrapi.Handle(h), err
}

func (s *Session) do(ctx context.Context, name string, args ...any) error {
	_, err := s.Call(ctx, name, args...)
	return err
}

// APIInitialize runs CHR_api_initialize and returns its extended error
// info, which is populated on failure.
func (s *Session) APIInitialize(ctx context.Context, detail chrapi.DetailLevel) (string, error) {
	v, err := s.Call(ctx, "api_initialize", detail)
	info, _ := v.(string)
	return info, err
}

// APIGetVersion returns the DLL's version string.
func (s *Session) APIGetVersion(ctx context.Context) (string, error) {
	return output[string](ctx, s, "api_get_version")
}

// APIGetReturnMsg returns the DLL's text for code.
func (s *Session) APIGetReturnMsg(ctx context.Context, code chrapi.ReturnCode) (string, error) {
	return output[string](ctx, s, "api_get_return_msg", int32(code))
}

// TestNew creates an empty test.
func (s *Session) TestNew(ctx context.Context) (chrapi.Handle, error) {
	return s.handle(ctx, "test_new")
}

// TestDelete frees test and the pairs it owns.
func (s *Session) TestDelete(ctx context.Context, test chrapi.Handle) error {
	return s.do(ctx, "test_delete", test)
}

// TestAddPair adds pair to test.
func (s *Session) TestAddPair(ctx context.Context, test, pair chrapi.Handle) error {
	return s.do(ctx, "test_add_pair", test, pair)
}

// TestStart starts test running. Use WaitForTest to follow it.
func (s *Session) TestStart(ctx context.Context, test chrapi.Handle) error {
	return s.do(ctx, "test_start", test)
}

// TestStop asks a running test to stop.
func (s *Session) TestStop(ctx context.Context, test chrapi.Handle) error {
	return s.do(ctx, "test_stop", test)
}

// TestAbandon stops test without collecting results.
func (s *Session) TestAbandon(ctx context.Context, test chrapi.Handle) error {
	return s.do(ctx, "test_abandon", test)
}

// TestQueryStop waits up to timeout seconds for test to stop. A test still
// running yields a *CallError with code CHR_TIMED_OUT.
func (s *Session) TestQueryStop(ctx context.Context, test chrapi.Handle, timeout uint32) error {
	return s.do(ctx, "test_query_stop", test, timeout)
}

// TestGetPairCount returns the number of pairs in test.
func (s *Session) TestGetPairCount(ctx context.Context, test chrapi.Handle) (uint32, error) {
	return output[uint32](ctx, s, "test_get_pair_count", test)
}

// TestGetPair returns the pair at index in test.
func (s *Session) TestGetPair(ctx context.Context, test chrapi.Handle, index uint32) (chrapi.Handle, error) {
	return s.handle(ctx, "test_get_pair", test, index)
}

// TestGetRunopts returns test's run options object.
func (s *Session) TestGetRunopts(ctx context.Context, test chrapi.Handle) (chrapi.Handle, error) {
	return s.handle(ctx, "test_get_runopts", test)
}

// TestSave writes test to its file name.
func (s *Session) TestSave(ctx context.Context, test chrapi.Handle) error {
	return s.do(ctx, "test_save", test)
}

// TestSetFilename sets the .tst file TestSave writes.
func (s *Session) TestSetFilename(ctx context.Context, test chrapi.Handle, filename string) error {
	return s.do(ctx, "test_set_filename", test, filename)
}

// RunoptsSetTestEnd selects how a test ends.
func (s *Session) RunoptsSetTestEnd(ctx context.Context, runopts chrapi.Handle, end chrapi.TestEnd) error {
	return s.do(ctx, "runopts_set_test_end", runopts, end)
}

// RunoptsSetTestDuration sets a fixed duration in seconds.
func (s *Session) RunoptsSetTestDuration(ctx context.Context, runopts chrapi.Handle, seconds uint32) error {
	return s.do(ctx, "runopts_set_test_duration", runopts, seconds)
}

// RunoptsGetTestDuration returns the fixed duration in seconds.
func (s *Session) RunoptsGetTestDuration(ctx context.Context, runopts chrapi.Handle) (uint32, error) {
	return output[uint32](ctx, s, "runopts_get_test_duration", runopts)
}

// PairNew creates a pair with default attributes.
func (s *Session) PairNew(ctx context.Context) (chrapi.Handle, error) {
	return s.handle(ctx, "pair_new")
}

// PairDelete frees a pair that no test owns.
func (s *Session) PairDelete(ctx context.Context, pair chrapi.Handle) error {
	return s.do(ctx, "pair_delete", pair)
}

// PairCopy copies src's attributes into dst.
func (s *Session) PairCopy(ctx context.Context, dst, src chrapi.Handle) error {
	return s.do(ctx, "pair_copy", dst, src)
}

// PairSetE1Addr sets endpoint 1's address.
func (s *Session) PairSetE1Addr(ctx context.Context, pair chrapi.Handle, addr string) error {
	return s.do(ctx, "pair_set_e1_addr", pair, addr)
}

// PairSetE2Addr sets endpoint 2's address.
func (s *Session) PairSetE2Addr(ctx context.Context, pair chrapi.Handle, addr string) error {
	return s.do(ctx, "pair_set_e2_addr", pair, addr)
}

// PairGetE1Addr returns endpoint 1's address.
func (s *Session) PairGetE1Addr(ctx context.Context, pair chrapi.Handle) (string, error) {
	return output[string](ctx, s, "pair_get_e1_addr", pair)
}

// PairGetE2Addr returns endpoint 2's address.
func (s *Session) PairGetE2Addr(ctx context.Context, pair chrapi.Handle) (string, error) {
	return output[string](ctx, s, "pair_get_e2_addr", pair)
}

// PairUseScriptFilename loads the script at path into pair.
func (s *Session) PairUseScriptFilename(ctx context.Context, pair chrapi.Handle, path string) error {
	return s.do(ctx, "pair_use_script_filename", pair, path)
}

// PairSetComment sets pair's comment.
func (s *Session) PairSetComment(ctx context.Context, pair chrapi.Handle, comment string) error {
	return s.do(ctx, "pair_set_comment", pair, comment)
}

// PairSetProtocol sets the network protocol pair uses.
func (s *Session) PairSetProtocol(ctx context.Context, pair chrapi.Handle, protocol chrapi.Protocol) error {
	return s.do(ctx, "pair_set_protocol", pair, protocol)
}

// PairSwapEndpoints calls the native swap, which IxChariot 6.70 and later
// export. See PairSwapEndpointsCompat for older versions.
func (s *Session) PairSwapEndpoints(ctx context.Context, pair chrapi.Handle) error {
	return s.do(ctx, "pair_swap_endpoints", pair)
}

// PairGetTimingRecordCount returns how many timing records pair has.
func (s *Session) PairGetTimingRecordCount(ctx context.Context, pair chrapi.Handle) (uint32, error) {
	return output[uint32](ctx, s, "pair_get_timing_record_count", pair)
}

// PairGetTimingRecord returns pair's timing record at index.
func (s *Session) PairGetTimingRecord(ctx context.Context, pair chrapi.Handle, index uint32) (chrapi.Handle, error) {
	return s.handle(ctx, "pair_get_timing_record", pair, index)
}

// TimingrecGetElapsed returns a timing record's elapsed time in seconds.
func (s *Session) TimingrecGetElapsed(ctx context.Context, rec chrapi.Handle) (float64, error) {
	return output[float64](ctx, s, "timingrec_get_elapsed", rec)
}

// CommonResultsGetMeasTime returns the measured time in seconds of a pair or timing record.
func (s *Session) CommonResultsGetMeasTime(ctx context.Context, h chrapi.Handle) (float64, error) {
	return output[float64](ctx, s, "common_results_get_meas_time", h)
}

// CommonResultsGetBytesSentE1 returns the bytes endpoint 1 sent.
func (s *Session) CommonResultsGetBytesSentE1(ctx context.Context, h chrapi.Handle) (float64, error) {
	return output[float64](ctx, s, "common_results_get_bytes_sent_e1", h)
}

// CommonResultsGetBytesRecvE1 returns the bytes endpoint 1 received.
func (s *Session) CommonResultsGetBytesRecvE1(ctx context.Context, h chrapi.Handle) (float64, error) {
	return output[float64](ctx, s, "common_results_get_bytes_recv_e1", h)
}

// CommonErrorGetInfo returns the extended error info recorded on h.
func (s *Session) CommonErrorGetInfo(ctx context.Context, h chrapi.Handle, detail chrapi.DetailLevel) (string, error) {
	return output[string](ctx, s, "common_error_get_info", h, detail)
}
