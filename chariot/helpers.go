// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chariot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

// mbpsPerByte converts a byte count to megabits.
const mbpsPerByte = 8e-6

// APIInitializeChecked initializes the API with full detail and logs the
// extended info when it fails. It returns the native return code.
func (s *Session) APIInitializeChecked(ctx context.Context) (chrapi.ReturnCode, error) {
	res, err := s.Raw(ctx, "api_initialize", chrapi.DetailLevelAll)
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		s.logger.Error(fmt.Sprintf("Initialization failed: rc = %d", int32(res.Code)))
		s.logger.Error("Extended error info", "info", res.Value())
	}
	return res.Code, nil
}

// SetPairAddr sets both endpoint addresses of pair.
func (s *Session) SetPairAddr(ctx context.Context, pair chrapi.Handle, e1, e2 string) error {
	if err := s.PairSetE1Addr(ctx, pair, e1); err != nil {
		return err
	}
	return s.PairSetE2Addr(ctx, pair, e2)
}

// PairAttr holds the optional pair settings.
type PairAttr struct {
	Protocol *chrapi.Protocol
	Comment  *string
}

// CreatePairAttr creates a pair and applies the given attributes to it.
func (s *Session) CreatePairAttr(ctx context.Context, e1, e2, script string, attr PairAttr) (chrapi.Handle, error) {
	pair, err := s.PairNew(ctx)
	if err != nil {
		return chrapi.NullHandle, err
	}
	if err := s.ApplyPairAttr(ctx, pair, e1, e2, script, attr); err != nil {
		return pair, err
	}
	return pair, nil
}

// ApplyPairAttr sets the endpoints and script of pair. A relative script
// resolves against the Scripts directory and must exist.
func (s *Session) ApplyPairAttr(ctx context.Context, pair chrapi.Handle, e1, e2, script string, attr PairAttr) error {
	if err := s.SetPairAddr(ctx, pair, e1, e2); err != nil {
		return err
	}
	path, err := s.scriptPath(script)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("script is not found: %s: %w", path, fs.ErrNotExist)
	}
	if err := s.PairUseScriptFilename(ctx, pair, path); err != nil {
		return err
	}
	if attr.Comment != nil {
		if err := s.PairSetComment(ctx, pair, *attr.Comment); err != nil {
			return err
		}
	}
	if attr.Protocol != nil {
		if err := s.PairSetProtocol(ctx, pair, *attr.Protocol); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) scriptPath(script string) (string, error) {
	if filepath.IsAbs(script) {
		return script, nil
	}
	dir := s.scriptsDir
	if dir == "" {
		var err error
		if dir, err = chrapi.ScriptsDir(s.dllDir); err != nil {
			return "", fmt.Errorf("resolving script %s: %w", script, err)
		}
	}
	return filepath.Join(dir, script), nil
}

// GetPairs returns the pairs of test in order.
func (s *Session) GetPairs(ctx context.Context, test chrapi.Handle) ([]chrapi.Handle, error) {
	count, err := s.TestGetPairCount(ctx, test)
	if err != nil {
		return nil, err
	}
	pairs := make([]chrapi.Handle, count)
	for i := range pairs {
		if pairs[i], err = s.TestGetPair(ctx, test, uint32(i)); err != nil {
			return nil, err
		}
	}
	return pairs, nil
}

// GetPairTimeElapsed returns the elapsed time of pair's last timing record,
// or 0 when it has none.
func (s *Session) GetPairTimeElapsed(ctx context.Context, pair chrapi.Handle) (float64, error) {
	count, err := s.PairGetTimingRecordCount(ctx, pair)
	if err != nil || count == 0 {
		return 0, err
	}
	rec, err := s.PairGetTimingRecord(ctx, pair, count-1)
	if err != nil {
		return 0, err
	}
	return s.TimingrecGetElapsed(ctx, rec)
}

// GetPairMeasureTime returns the measured time of pair's results.
func (s *Session) GetPairMeasureTime(ctx context.Context, pair chrapi.Handle) (float64, error) {
	return s.CommonResultsGetMeasTime(ctx, pair)
}

// GetPairBytesAllE1 returns the bytes sent plus received by E1.
func (s *Session) GetPairBytesAllE1(ctx context.Context, h chrapi.Handle) (float64, error) {
	sent, err := s.CommonResultsGetBytesSentE1(ctx, h)
	if err != nil {
		return 0, err
	}
	recv, err := s.CommonResultsGetBytesRecvE1(ctx, h)
	if err != nil {
		return 0, err
	}
	return sent + recv, nil
}

// GetPairsBytesSentE1 sums the bytes endpoint 1 sent across pairs.
func (s *Session) GetPairsBytesSentE1(ctx context.Context, pairs []chrapi.Handle) (float64, error) {
	return s.sum(ctx, pairs, s.CommonResultsGetBytesSentE1)
}

// GetPairsBytesRecvE1 sums the bytes endpoint 1 received across pairs.
func (s *Session) GetPairsBytesRecvE1(ctx context.Context, pairs []chrapi.Handle) (float64, error) {
	return s.sum(ctx, pairs, s.CommonResultsGetBytesRecvE1)
}

// GetPairsResultsAverage returns the aggregate throughput of pairs in Mbps
// over the longest elapsed time. ok is false when that time is 0.
func (s *Session) GetPairsResultsAverage(ctx context.Context, pairs []chrapi.Handle) (mbps float64, ok bool, err error) {
	return s.average(ctx, pairs, s.GetPairTimeElapsed)
}

// GetPairsMeasureResultsAverage is GetPairsResultsAverage over the measured
// time instead of the timing records.
func (s *Session) GetPairsMeasureResultsAverage(ctx context.Context, pairs []chrapi.Handle) (mbps float64, ok bool, err error) {
	return s.average(ctx, pairs, s.GetPairMeasureTime)
}

func (s *Session) average(ctx context.Context, pairs []chrapi.Handle, seconds func(context.Context, chrapi.Handle) (float64, error)) (float64, bool, error) {
	var longest float64
	for _, p := range pairs {
		t, err := seconds(ctx, p)
		if err != nil {
			return 0, false, err
		}
		longest = max(longest, t)
	}
	if longest == 0 {
		return 0, false, nil
	}
	total, err := s.sum(ctx, pairs, s.GetPairBytesAllE1)
	if err != nil {
		return 0, false, err
	}
	return total * mbpsPerByte / longest, true, nil
}

func (s *Session) sum(ctx context.Context, pairs []chrapi.Handle, get func(context.Context, chrapi.Handle) (float64, error)) (float64, error) {
	var total float64
	for _, p := range pairs {
		v, err := get(ctx, p)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// PairSwapEndpointsCompat swaps pair's endpoints, natively when the DLL
// exports CHR_pair_swap_endpoints and by exchanging addresses otherwise.
func (s *Session) PairSwapEndpointsCompat(ctx context.Context, pair chrapi.Handle) error {
	if s.Has("CHR_pair_swap_endpoints") {
		return s.PairSwapEndpoints(ctx, pair)
	}
	e1, err := s.PairGetE1Addr(ctx, pair)
	if err != nil {
		return err
	}
	e2, err := s.PairGetE2Addr(ctx, pair)
	if err != nil {
		return err
	}
	return s.SetPairAddr(ctx, pair, e2, e1)
}

// GetSwapPairsTest returns a new test holding a copy of every pair of test
// with its endpoints swapped.
func (s *Session) GetSwapPairsTest(ctx context.Context, test chrapi.Handle) (chrapi.Handle, error) {
	swapped, err := s.TestNew(ctx)
	if err != nil {
		return chrapi.NullHandle, err
	}
	pairs, err := s.GetPairs(ctx, test)
	if err != nil {
		return swapped, err
	}
	for _, src := range pairs {
		dst, err := s.PairNew(ctx)
		if err != nil {
			return swapped, err
		}
		if err := s.PairCopy(ctx, dst, src); err != nil {
			return swapped, err
		}
		if err := s.PairSwapEndpointsCompat(ctx, dst); err != nil {
			return swapped, err
		}
		if err := s.TestAddPair(ctx, swapped, dst); err != nil {
			return swapped, err
		}
	}
	return swapped, nil
}

// WaitForTest polls test until it stops, calling tick with the seconds
// waited so far after every poll. It returns false when the poll fails.
func (s *Session) WaitForTest(ctx context.Context, test chrapi.Handle, tick func(timer uint32), timeout uint32) (bool, error) {
	return s.wait(ctx, test, 0, timeout, tick)
}

// WaitTestTimeout polls test until it stops or waitTime seconds of polling
// have elapsed. Running out of time returns false, not an error.
func (s *Session) WaitTestTimeout(ctx context.Context, test chrapi.Handle, waitTime, timeout uint32) (bool, error) {
	if waitTime == 0 {
		s.ShowError(ctx, test, chrapi.TimedOut, "wait_for_test")
		return false, nil
	}
	return s.wait(ctx, test, waitTime, timeout, nil)
}

// wait is the query_stop loop; ceiling 0 means unbounded. A zero timeout
// polls in one-second steps.
func (s *Session) wait(ctx context.Context, test chrapi.Handle, ceiling, timeout uint32, tick func(uint32)) (bool, error) {
	if timeout == 0 {
		timeout = 1
	}
	finished := false
	var timer uint32
poll:
	for !finished && (ceiling == 0 || timer < ceiling) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		res, err := s.Raw(ctx, "test_query_stop", test, timeout)
		if err != nil {
			return false, err
		}
		if tick != nil {
			tick(timer)
		}
		switch res.Code {
		case chrapi.OK:
			finished = true
		case chrapi.TimedOut:
			timer += timeout
			s.logger.Info("Waiting for test to stop...", "timer", timer)
		default:
			s.ShowError(ctx, test, res.Code, "test_query_stop")
			break poll
		}
	}
	if !finished {
		s.ShowError(ctx, test, chrapi.TimedOut, "wait_for_test")
		return false, nil
	}
	return true, nil
}
