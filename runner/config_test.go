// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

const minimal = `
[[pairs]]
e1 = "10.0.0.1"
e2 = "10.0.0.2"
script = "x.scr"
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(minimal)
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultTimeout), cfg.Timeout)
	assert.Equal(t, uint32(DefaultMaxWaitTime), cfg.MaxWaitTime)
	assert.Equal(t, DefaultAngles, cfg.RotationAngle)
	assert.Equal(t, DefaultResultFile, cfg.ResultFile)
	assert.Equal(t, DefaultAddress, cfg.Address)
	assert.Nil(t, cfg.Runopts)
}

func TestParseExplicitZeroes(t *testing.T) {
	cfg, err := Parse("timeout = 0\nmax_wait_time = 0\nrotation_angle = []\n" + minimal)
	require.NoError(t, err)
	assert.Zero(t, cfg.Timeout)
	assert.Zero(t, cfg.MaxWaitTime)
	assert.Empty(t, cfg.RotationAngle)
}

func TestParsePairAttr(t *testing.T) {
	cfg, err := Parse(minimal + "protocol = \"udp\"\ncomment = \"uplink\"\n")
	require.NoError(t, err)
	a := cfg.Pairs[0].attr()
	require.NotNil(t, a.Protocol)
	assert.Equal(t, chrapi.ProtocolUDP, *a.Protocol)
	require.NotNil(t, a.Comment)
	assert.Equal(t, "uplink", *a.Comment)

	a = Pair{}.attr()
	assert.Nil(t, a.Protocol)
	assert.Nil(t, a.Comment)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"no pairs":    "timeout = 1\n",
		"missing e2":  "[[pairs]]\ne1 = \"a\"\nscript = \"x\"\n",
		"protocol":    minimal + "protocol = \"carrier-pigeon\"\n",
		"test_end":    minimal + "[runopts]\ntest_end = \"never\"\n",
		"unknown key": "colour = \"red\"\n" + minimal,
		"bad toml":    "[[pairs]\n",
		"count":       minimal + "count = -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(doc)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chariot.toml")
	require.NoError(t, os.WriteFile(path, []byte(minimal+"[runopts]\ntest_duration = 5\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Runopts)
	require.NotNil(t, cfg.Runopts.TestDuration)
	assert.Equal(t, uint32(5), *cfg.Runopts.TestDuration)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
