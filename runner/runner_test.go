// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chariot"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/chrapi/fakedll"
	"github.com/Query-farm/vgi-chariot/results"
)

const plan = `
rotation_angle = [0, 90]

[[pairs]]
e1 = "172.28.100.80"
e2 = "172.28.100.93"
script = "High_Performance_Throughput.scr"
count = 2

[runopts]
test_end = "fixed_duration"
test_duration = 20
`

type harness struct {
	sim     *fakedll.Chariot
	session *chariot.Session
	store   *results.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	scripts := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "High_Performance_Throughput.scr"), nil, 0o644))

	sim := fakedll.NewChariot()
	s := chariot.New(
		chariot.WithPlatform("windows", "386"),
		chariot.WithLibraryLoader(func(string) (chrapi.Library, error) { return sim, nil }),
		chariot.WithAPIVersion(chrapi.V(7, 30)),
		chariot.WithScriptsDir(scripts),
		chariot.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, s.Connect(context.Background(), "localhost"))
	t.Cleanup(func() { s.Close() })

	store, err := results.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &harness{sim: sim, session: s, store: store}
}

func (h *harness) runner(t *testing.T, doc string) *Runner {
	t.Helper()
	cfg, err := Parse(doc)
	require.NoError(t, err)
	return New(h.session, cfg, h.store, WithLogger(slog.New(slog.DiscardHandler)))
}

func TestCreateTestAppliesRunopts(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, plan)
	ctx := context.Background()

	test, err := r.CreateTest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(80), r.WaitTime())
	assert.Equal(t, uint32(20), h.sim.TestDuration(test))

	pairs, err := h.session.GetPairs(ctx, test)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	rx, err := r.CopySwapPairsTest(ctx, test)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), h.sim.TestDuration(rx))
	rxPairs, err := h.session.GetPairs(ctx, rx)
	require.NoError(t, err)
	e1, e2, _ := h.sim.PairAddrs(rxPairs[0])
	assert.Equal(t, "172.28.100.93", e1)
	assert.Equal(t, "172.28.100.80", e2)
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, plan)

	run, err := r.Run(context.Background())
	require.NoError(t, err)

	// Two pairs, each 1e6 B/s over 20 s: 16 Mbps per direction.
	for _, dir := range []results.Direction{results.TX, results.RX} {
		series, err := h.store.Series(dir)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 90}, series.Angles)
		assert.Equal(t, []results.Run{run}, series.Runs)
		for _, row := range series.Cells {
			require.NotNil(t, row[0])
			assert.Equal(t, 16.0, *row[0])
		}
	}
	// 20 polls per run, four runs.
	assert.Equal(t, 80, h.sim.Polls())
}

func TestRunInitializeFailure(t *testing.T) {
	h := newHarness(t)
	h.sim.Handle("CHR_api_initialize", func(a []chrapi.Arg) chrapi.ReturnCode {
		fakedll.SetString(a[1], a[2], a[3], "no license")
		return chrapi.NotLicensed
	})
	_, err := h.runner(t, plan).Run(context.Background())
	assert.ErrorIs(t, err, ErrInitialize)
}

func TestRunTestResultTimeout(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, `
max_wait_time = 3
[[pairs]]
e1 = "a"
e2 = "b"
script = "High_Performance_Throughput.scr"
`)
	ctx := context.Background()
	test, err := r.CreateTest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), r.WaitTime())

	h.sim.ScriptStops(chrapi.TimedOut, chrapi.TimedOut, chrapi.TimedOut, chrapi.TimedOut)
	_, err = r.RunTestResult(ctx, test)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, h.sim.Polls())
}

type rotations []float64

func (r *rotations) Rotate(_ context.Context, angle float64) error {
	*r = append(*r, angle)
	return nil
}

func TestRunRotates(t *testing.T) {
	h := newHarness(t)
	cfg, err := Parse(plan)
	require.NoError(t, err)
	rot := &rotations{}
	_, err = New(h.session, cfg, h.store, WithRotator(rot), WithLogger(slog.New(slog.DiscardHandler))).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rotations{0, 90}, *rot)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 8.123, round3(8.12345))
	assert.Equal(t, 8.124, round3(8.1236))
}
