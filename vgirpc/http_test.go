// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/vgirpc"
)

// encodingRecorder notes the Content-Encoding of every response.
type encodingRecorder struct {
	mu        sync.Mutex
	encodings []string
}

func (r *encodingRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err == nil {
		r.mu.Lock()
		r.encodings = append(r.encodings, resp.Header.Get("Content-Encoding"))
		r.mu.Unlock()
	}
	return resp, err
}

func (r *encodingRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.encodings...)
}

func httpClient(t *testing.T, level int, opts ...vgirpc.HTTPOption) (*vgirpc.Client, *encodingRecorder, string) {
	t.Helper()
	h := vgirpc.NewHttpServer(newTestServer())
	h.SetCompressionLevel(level)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	rec := &encodingRecorder{}
	opts = append([]vgirpc.HTTPOption{vgirpc.WithHTTPClient(&http.Client{Transport: rec})}, opts...)
	c := vgirpc.NewClient(vgirpc.NewHTTPTransport(ts.URL, opts...))
	t.Cleanup(func() { c.Close() })
	return c, rec, ts.URL
}

func TestHTTPUnary(t *testing.T) {
	c, rec, _ := httpClient(t, 0)
	out, err := vgirpc.Call[[]string](context.Background(), c, "repeat", wordOnly{Word: "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "y", "y"}, out)
	assert.Equal(t, []string{""}, rec.seen())
}

func TestHTTPZstd(t *testing.T) {
	c, rec, _ := httpClient(t, 3, vgirpc.WithRequestCompression(3))
	ctx := context.Background()

	row, err := c.CallRow(ctx, "row", rowParams, []any{21, "z"})
	require.NoError(t, err)
	assert.Equal(t, []any{int32(0), uint32(42), "z!"}, row)

	info, err := vgirpc.Call[buildInfo](ctx, c, "info", noParams{})
	require.NoError(t, err)
	assert.Equal(t, "7.30", info.Version)

	assert.Equal(t, []string{"zstd", "zstd"}, rec.seen())
}

func TestHTTPErrors(t *testing.T) {
	c, _, _ := httpClient(t, 3)
	ctx := context.Background()

	err := vgirpc.CallVoid(ctx, c, "fail", wordOnly{Word: "value"})
	var rpcErr *vgirpc.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "ValueError", rpcErr.Type)

	err = vgirpc.CallVoid(ctx, c, "missing", noParams{})
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "AttributeError", rpcErr.Type)
}

func TestHTTPDescribe(t *testing.T) {
	c, _, base := httpClient(t, 0)
	methods, err := c.Describe(context.Background())
	require.NoError(t, err)
	assert.Len(t, methods, 5)

	resp, err := http.Get(base + "/vgi")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "repeats a word")
	assert.Contains(t, string(body), "test-server")
}

func TestHTTPRejectsWrongContentType(t *testing.T) {
	_, _, base := httpClient(t, 0)
	resp, err := http.Post(base+"/vgi/repeat", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Get(base + "/elsewhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
