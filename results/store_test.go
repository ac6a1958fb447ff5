// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package results

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRunStamp(t *testing.T) {
	s := open(t)
	s.now = func() time.Time { return time.Date(2021, 2, 9, 9, 56, 15, 0, time.Local) }
	a, b := s.NewRun(), s.NewRun()
	assert.Equal(t, "2021/02/09 09:56:15", a.At)
	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSeriesPivot(t *testing.T) {
	s := open(t)
	first, second := s.NewRun(), s.NewRun()

	require.NoError(t, s.Record(first, TX, 0, 100.5))
	require.NoError(t, s.Record(first, RX, 0, 90))
	require.NoError(t, s.Record(first, TX, 30, 101))
	require.NoError(t, s.Record(second, TX, 60, 99.25))
	require.NoError(t, s.Record(second, TX, 0, 102))

	tx, err := s.Series(TX)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30, 60}, tx.Angles)
	require.Len(t, tx.Runs, 2)
	assert.Equal(t, first.ID, tx.Runs[0].ID)
	assert.Equal(t, second.ID, tx.Runs[1].ID)

	require.NotNil(t, tx.Cells[0][0])
	assert.Equal(t, 100.5, *tx.Cells[0][0])
	assert.Equal(t, 102.0, *tx.Cells[0][1])
	assert.Equal(t, 101.0, *tx.Cells[1][0])
	assert.Nil(t, tx.Cells[1][1])
	assert.Nil(t, tx.Cells[2][0])
	assert.Equal(t, 99.25, *tx.Cells[2][1])

	rx, err := s.Series(RX)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, rx.Angles)
	assert.Len(t, rx.Runs, 1)
}

func TestRecordRejects(t *testing.T) {
	s := open(t)
	assert.ErrorIs(t, s.Record(Run{}, TX, 0, 1), ErrUnknownRun)
	assert.Error(t, s.Record(s.NewRun(), Direction("UP"), 0, 1))

	empty, err := s.Series(RX)
	require.NoError(t, err)
	assert.Empty(t, empty.Angles)
	assert.Empty(t, empty.Cells)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	run := s.NewRun()
	require.NoError(t, s.Record(run, RX, 90, 12.5))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	rx, err := s.Series(RX)
	require.NoError(t, err)
	assert.Equal(t, []Run{run}, rx.Runs)
}
