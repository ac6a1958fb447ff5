// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package bridge_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Query-farm/vgi-chariot/bridge"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/chrapi/fakedll"
	"github.com/Query-farm/vgi-chariot/vgirpc"
)

// benchCalls measures a scalar round trip and a buffer round trip.
func benchCalls(b *testing.B, c caller) {
	ctx := context.Background()
	res, err := c.Call(ctx, "CHR_pair_new")
	if err != nil {
		b.Fatal(err)
	}
	pair := res.Value()
	if _, err := c.Call(ctx, "CHR_pair_set_e1_addr", pair, "172.28.100.80"); err != nil {
		b.Fatal(err)
	}
	b.Run("scalar", func(b *testing.B) {
		for b.Loop() {
			if _, err := c.Call(ctx, "CHR_api_get_max_pairs"); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("buffer", func(b *testing.B) {
		for b.Loop() {
			if _, err := c.Call(ctx, "CHR_pair_get_e1_addr", pair); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkLocal(b *testing.B) {
	benchCalls(b, bind(fakedll.NewChariot()))
}

func BenchmarkPipe(b *testing.B) {
	lib := bind(fakedll.NewChariot())
	s := bridge.NewServer(lib, quiet)
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		s.Serve(reqR, respW)
		respW.Close()
	}()
	client := vgirpc.NewClient(vgirpc.NewStdioTransport(respR, reqW))
	defer client.Close()
	c, err := bridge.Dial(context.Background(), client, chrapi.Standard(), lib.Codec())
	if err != nil {
		b.Fatal(err)
	}
	benchCalls(b, c)
}

func BenchmarkHTTP(b *testing.B) {
	lib := bind(fakedll.NewChariot())
	ts := httptest.NewServer(vgirpc.NewHttpServer(bridge.NewServer(lib, quiet)))
	defer ts.Close()
	c, err := bridge.Dial(context.Background(), vgirpc.NewClient(vgirpc.NewHTTPTransport(ts.URL)), chrapi.Standard(), lib.Codec())
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()
	benchCalls(b, c)
}
