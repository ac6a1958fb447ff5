// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

func TestNewCodecDefaultsToUTF8(t *testing.T) {
	for _, label := range []string{"", "utf-8", "UTF8", " utf-8 "} {
		c, err := chrapi.NewCodec(label)
		require.NoError(t, err, label)
		assert.Equal(t, "utf-8", c.Name())
	}
}

func TestNewCodecUnknown(t *testing.T) {
	_, err := chrapi.NewCodec("klingon")
	assert.ErrorIs(t, err, chrapi.ErrEncoding)
}

func TestGBKRoundTrip(t *testing.T) {
	c, err := chrapi.NewCodec("gbk")
	require.NoError(t, err)
	assert.Equal(t, "gbk", c.Name())

	b, err := c.Encode("中文")
	require.NoError(t, err)
	assert.Len(t, b, 4)
	s, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "中文", s)
}

func TestEncodedLengthGovernsLimit(t *testing.T) {
	c, err := chrapi.NewCodec("gbk")
	require.NoError(t, err)
	// 32 two-byte characters need 64 bytes plus the NUL.
	s := ""
	for range 32 {
		s += "中"
	}
	_, err = chrapi.NewFrame(c, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{s})
	require.NoError(t, err)
	_, err = chrapi.NewFrame(c, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{s + "中"})
	require.ErrorIs(t, err, chrapi.ErrStringTooLong)
}

func TestUnrepresentableRune(t *testing.T) {
	c, err := chrapi.NewCodec("windows-1252")
	require.NoError(t, err)
	_, err = c.Encode("中")
	assert.ErrorIs(t, err, chrapi.ErrEncoding)
}

func TestUTF8RejectsInvalidBytes(t *testing.T) {
	_, err := chrapi.UTF8.Decode([]byte{0xff, 0xfe})
	assert.ErrorIs(t, err, chrapi.ErrEncoding)
	_, err = chrapi.UTF8.Encode(string([]byte{0xc3}))
	assert.ErrorIs(t, err, chrapi.ErrEncoding)
}

func TestRawBytesBypassCodec(t *testing.T) {
	c, err := chrapi.NewCodec("windows-1252")
	require.NoError(t, err)
	f, err := chrapi.NewFrame(c, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{[]byte{0xe4, 0xb8}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe4, 0xb8, 0}, f.Args[0].Ptr)
}
