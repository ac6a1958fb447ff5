// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/chrapi/fakedll"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func gatedTable() *chrapi.Table {
	t := chrapi.NewTable(chrapi.V(1))
	t.Define("CHR_present", chrapi.ULong, chrapi.ParamOut(chrapi.ULong))
	t.Define("CHR_new_feature", chrapi.ULong).Since(7, 0, 0)
	return t
}

func presentOnly() *fakedll.Library {
	lib := fakedll.New("ChrApi.dll")
	lib.Handle("CHR_present", func(a []chrapi.Arg) chrapi.ReturnCode {
		fakedll.SetULong(a[1], fakedll.ULong(a[0])*2)
		return chrapi.OK
	})
	return lib
}

func TestMissingSymbolSuppressedBeforeSince(t *testing.T) {
	logger, buf := captureLogger()
	b := chrapi.Bind(presentOnly(), gatedTable(), chrapi.WithVersion(chrapi.V(6, 9, 0)), chrapi.WithLogger(logger))
	assert.Empty(t, buf.String())
	assert.False(t, b.Has("CHR_new_feature"))

	_, err := b.Call(context.Background(), "CHR_new_feature", 1)
	var unsupported *chrapi.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "CHR_new_feature", unsupported.Name)
	assert.Equal(t, chrapi.V(6, 9, 0), unsupported.Version)
}

func TestMissingSymbolLoggedWhenExpected(t *testing.T) {
	logger, buf := captureLogger()
	b := chrapi.Bind(presentOnly(), gatedTable(), chrapi.WithVersion(chrapi.V(7, 10, 0)), chrapi.WithLogger(logger))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "ChrApi.dll have no function: CHR_new_feature")

	_, err := b.Call(context.Background(), "CHR_new_feature", 1)
	assert.ErrorIs(t, err, chrapi.ErrNoSuchFunction)
	var unsupported *chrapi.UnsupportedError
	assert.False(t, errors.As(err, &unsupported))
}

func TestMissingSymbolLoggedWithoutVersion(t *testing.T) {
	logger, buf := captureLogger()
	chrapi.Bind(presentOnly(), gatedTable(), chrapi.WithLogger(logger))
	assert.Contains(t, buf.String(), "have no function: CHR_new_feature")
}

func TestBindingCall(t *testing.T) {
	b := chrapi.Bind(presentOnly(), gatedTable(), chrapi.WithLogger(slog.New(slog.DiscardHandler)))
	res, err := b.Call(context.Background(), "CHR_present", 21)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, uint32(42), res.Value())
	assert.Equal(t, []string{"CHR_present"}, b.Available())
}

func TestBindingCallErrors(t *testing.T) {
	b := chrapi.Bind(presentOnly(), gatedTable(), chrapi.WithLogger(slog.New(slog.DiscardHandler)))

	_, err := b.Call(context.Background(), "CHR_not_declared")
	assert.ErrorIs(t, err, chrapi.ErrNoSuchFunction)

	_, err = b.Call(context.Background(), "CHR_present")
	assert.ErrorIs(t, err, chrapi.ErrArgCount)

	_, err = b.Call(context.Background(), "CHR_present", -1)
	assert.ErrorIs(t, err, chrapi.ErrValueRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Call(ctx, "CHR_present", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNonOKIsNotAnError(t *testing.T) {
	lib := fakedll.New("ChrApi.dll")
	lib.Handle("CHR_present", func([]chrapi.Arg) chrapi.ReturnCode { return chrapi.HandleInvalid })
	b := chrapi.Bind(lib, gatedTable(), chrapi.WithLogger(slog.New(slog.DiscardHandler)))
	res, err := b.Call(context.Background(), "CHR_present", 5)
	require.NoError(t, err)
	assert.Equal(t, chrapi.HandleInvalid, res.Code)
	assert.False(t, res.OK())
}

func TestResultValue(t *testing.T) {
	assert.Nil(t, chrapi.Result{}.Value())
	assert.Equal(t, "x", chrapi.Result{Outputs: []any{"x"}}.Value())
	assert.Equal(t, []any{"x", uint32(1)}, chrapi.Result{Outputs: []any{"x", uint32(1)}}.Value())
}

func TestBindingClose(t *testing.T) {
	lib := presentOnly()
	b := chrapi.Bind(lib, gatedTable(), chrapi.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, b.Close())
	assert.True(t, lib.Closed())
}

func TestStandardAgainstSimulation(t *testing.T) {
	sim := fakedll.NewChariot()
	logger, buf := captureLogger()
	b := chrapi.Bind(sim, chrapi.Standard(), chrapi.WithVersion(chrapi.V(7, 30)), chrapi.WithLogger(logger))
	assert.Empty(t, buf.String(), "simulation should export every standard function")

	ctx := context.Background()
	res, err := b.Call(ctx, "CHR_api_get_version")
	require.NoError(t, err)
	assert.Equal(t, "7.30", res.Value())

	res, err = b.Call(ctx, "CHR_pair_new")
	require.NoError(t, err)
	pair := res.Value().(uint32)

	res, err = b.Call(ctx, "CHR_pair_set_e1_addr", pair, "172.28.100.80")
	require.NoError(t, err)
	require.True(t, res.OK())

	res, err = b.Call(ctx, "CHR_pair_get_e1_addr", pair)
	require.NoError(t, err)
	assert.Equal(t, "172.28.100.80", res.Value())

	res, err = b.Call(ctx, "CHR_pair_get_e1_addr", uint32(1))
	require.NoError(t, err)
	assert.Equal(t, chrapi.HandleInvalid, res.Code)
}
