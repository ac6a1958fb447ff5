// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Codec converts between Go strings and the byte encoding ChrApi.dll
// expects. The encoding is fixed per deployment; IxChariot uses the
// system ANSI code page, so Chinese installs typically need "gbk".
type Codec struct {
	name string
	enc  encoding.Encoding // nil for utf-8
}

// UTF8 passes strings through unchanged after validation.
var UTF8 = &Codec{name: "utf-8"}

// NewCodec resolves a WHATWG encoding label such as "utf-8", "gbk" or
// "windows-1252". An empty label selects UTF-8.
func NewCodec(label string) (*Codec, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return UTF8, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrEncoding, label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(label)
	}
	if name == "utf-8" {
		return UTF8, nil
	}
	return &Codec{name: name, enc: enc}, nil
}

// Name returns the canonical encoding name.
func (c *Codec) Name() string {
	if c == nil {
		return UTF8.name
	}
	return c.name
}

// Encode converts s to the native encoding. Runes without a mapping are an
// error rather than being replaced.
func (c *Codec) Encode(s string) ([]byte, error) {
	if c == nil || c.enc == nil {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: invalid utf-8 input", ErrEncoding)
		}
		return []byte(s), nil
	}
	b, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncoding, c.name, err)
	}
	return b, nil
}

// Decode converts native bytes to a Go string.
func (c *Codec) Decode(b []byte) (string, error) {
	if c == nil || c.enc == nil {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: invalid utf-8 output", ErrEncoding)
		}
		return string(b), nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEncoding, c.name, err)
	}
	return string(out), nil
}
