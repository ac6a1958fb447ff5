// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/bridge"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/chrapi/fakedll"
	"github.com/Query-farm/vgi-chariot/vgirpc"
)

func simulated(sim *fakedll.Chariot) opener {
	return func(string) (chrapi.Library, error) { return sim, nil }
}

func TestServeStdio(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	cmd := newRootCmd(simulated(fakedll.NewChariot()))
	cmd.SetArgs([]string{"--api-version", "7.30", "--log-level", "warn"})
	cmd.SetIn(reqR)
	cmd.SetOut(respW)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(context.Background())
		respW.Close()
	}()

	ctx := context.Background()
	client := vgirpc.NewClient(vgirpc.NewStdioTransport(respR, reqW))
	c, err := bridge.Dial(ctx, client, chrapi.Standard(), chrapi.UTF8)
	require.NoError(t, err)
	assert.Equal(t, "7.30", c.Info().LibraryVersion)

	res, err := c.Call(ctx, "CHR_api_get_version")
	require.NoError(t, err)
	assert.Equal(t, "7.30", res.Value())

	require.NoError(t, c.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after the client closed")
	}
}

func TestServeHTTP(t *testing.T) {
	outR, outW := io.Pipe()
	var logs bytes.Buffer
	cmd := newRootCmd(simulated(fakedll.NewChariot()))
	cmd.SetArgs([]string{"--http", "127.0.0.1:0", "--api-version", "7.30", "--encoding", "gbk"})
	cmd.SetOut(outW)
	cmd.SetErr(&logs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "PORT:"), line)
	url := "http://127.0.0.1:" + strings.TrimSpace(strings.TrimPrefix(line, "PORT:"))

	gbk, err := chrapi.NewCodec("gbk")
	require.NoError(t, err)
	client := vgirpc.NewClient(vgirpc.NewHTTPTransport(url))
	c, err := bridge.Dial(ctx, client, chrapi.Standard(), gbk)
	require.NoError(t, err)
	assert.Equal(t, gbk.Name(), c.Info().Encoding)
	assert.True(t, c.Has("CHR_pair_swap_endpoints"))
	c.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestRejectsBadFlags(t *testing.T) {
	for name, args := range map[string][]string{
		"encoding":   {"--encoding", "no-such-charset"},
		"version":    {"--api-version", "seven"},
		"log level":  {"--log-level", "loud"},
		"positional": {"extra"},
	} {
		t.Run(name, func(t *testing.T) {
			cmd := newRootCmd(simulated(fakedll.NewChariot()))
			cmd.SetArgs(args)
			cmd.SetIn(strings.NewReader(""))
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			assert.Error(t, cmd.Execute())
		})
	}
}

func TestOpenFailure(t *testing.T) {
	cmd := newRootCmd(func(string) (chrapi.Library, error) { return nil, chrapi.ErrLibraryNotFound })
	cmd.SetArgs([]string{"--api-version", "7.30"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	assert.True(t, errors.Is(err, chrapi.ErrLibraryNotFound))
}

func TestSimulate(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	cmd := newRootCmd(func(string) (chrapi.Library, error) { return nil, chrapi.ErrLibraryNotFound })
	cmd.SetArgs([]string{"--simulate", "--api-version", "7.30"})
	cmd.SetIn(reqR)
	cmd.SetOut(respW)
	cmd.SetErr(io.Discard)
	done := make(chan error, 1)
	go func() {
		done <- cmd.Execute()
		respW.Close()
	}()

	ctx := context.Background()
	c, err := bridge.Dial(ctx, vgirpc.NewClient(vgirpc.NewStdioTransport(respR, reqW)), chrapi.Standard(), chrapi.UTF8)
	require.NoError(t, err)
	assert.Contains(t, c.Info().Library, "ChrApi.dll")
	require.NoError(t, c.Close())
	assert.NoError(t, <-done)
}
