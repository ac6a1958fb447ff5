// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chariot"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/chrapi/fakedll"
)

// workspace writes a plan and a script into a temp dir and returns the plan
// path plus session options that connect to a simulated DLL.
func workspace(t *testing.T, sim *fakedll.Chariot) (string, []chariot.Option) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tp.scr"), nil, 0o644))
	plan := `
result_file = "` + filepath.ToSlash(filepath.Join(dir, "results.db")) + `"
rotation_angle = [0, 45]

[[pairs]]
e1 = "172.28.100.80"
e2 = "172.28.100.93"
script = "tp.scr"

[runopts]
test_end = "fixed_duration"
test_duration = 10
`
	path := filepath.Join(dir, "chariot.toml")
	require.NoError(t, os.WriteFile(path, []byte(plan), 0o644))
	return path, []chariot.Option{
		chariot.WithPlatform("windows", "386"),
		chariot.WithLibraryLoader(func(string) (chrapi.Library, error) { return sim, nil }),
		chariot.WithAPIVersion(chrapi.V(7, 30)),
		chariot.WithScriptsDir(dir),
	}
}

func execute(t *testing.T, opts []chariot.Option, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(opts...)
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunThenResults(t *testing.T) {
	plan, opts := workspace(t, fakedll.NewChariot())

	out, err := execute(t, opts, "run", "--config", plan)
	require.NoError(t, err)
	assert.Contains(t, out, "run ")
	assert.Contains(t, out, "results.db")

	out, err = execute(t, nil, "results", "--config", plan)
	require.NoError(t, err)
	assert.Contains(t, out, "TX (Mbps)")
	assert.Contains(t, out, "RX (Mbps)")
	// One pair at 1e6 B/s.
	assert.Equal(t, 4, strings.Count(out, "8.000"))
	assert.Contains(t, out, "45")
}

func TestVersionAndFunctions(t *testing.T) {
	sim := fakedll.NewChariot()
	sim.Remove("CHR_test_load")
	plan, opts := workspace(t, sim)

	out, err := execute(t, opts, "version", "--config", plan)
	require.NoError(t, err)
	assert.Contains(t, out, "chrapi version: 7.30")

	out, err = execute(t, opts, "functions", "--config", plan)
	require.NoError(t, err)
	rows := map[string][]string{}
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) > 1 {
			rows[fields[0]] = fields[1:]
		}
	}
	assert.Equal(t, []string{"yes", "since", "6.70"}, rows["CHR_pair_swap_endpoints"])
	assert.Equal(t, []string{"no"}, rows["CHR_test_load"])
	assert.Equal(t, []string{"yes"}, rows["CHR_test_new"])
}

func TestMissingPlan(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.toml")
	_, err := execute(t, nil, "run", "--config", missing)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, opts := workspace(t, fakedll.NewChariot())
	_, err = execute(t, opts, "version", "--config", missing)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBadLogLevel(t *testing.T) {
	plan, opts := workspace(t, fakedll.NewChariot())
	cmd := newRootCmd(opts...)
	cmd.SetArgs([]string{"version", "--config", plan, "--log-level", "chatty"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
