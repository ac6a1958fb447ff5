// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]chrapi.Version{
		"7.30":     chrapi.V(7, 30),
		"7.30.10":  chrapi.V(7, 30, 10),
		"9.7 SP2":  chrapi.V(9, 7),
		" 6.70 ":   chrapi.V(6, 70),
		"8.1rc2":   chrapi.V(8, 1),
		"10.0.0.1": chrapi.V(10, 0, 0, 1),
	}
	for in, want := range cases {
		got, err := chrapi.ParseVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := chrapi.ParseVersion("SP2")
	assert.Error(t, err)
}

func TestVersionCompare(t *testing.T) {
	assert.Equal(t, 0, chrapi.V(7, 0).Compare(chrapi.V(7, 0, 0)))
	assert.Equal(t, -1, chrapi.V(6, 9, 0).Compare(chrapi.V(7, 0, 0)))
	assert.Equal(t, 1, chrapi.V(7, 10, 0).Compare(chrapi.V(7, 0, 0)))
	assert.Equal(t, 1, chrapi.V(7, 10).Compare(chrapi.V(7, 9, 99)))
	assert.Equal(t, "7.30.1", chrapi.V(7, 30, 1).String())
	assert.Equal(t, "unknown", chrapi.Version(nil).String())
}

func TestConstraint(t *testing.T) {
	since := chrapi.Constraint{Op: chrapi.Since, Version: chrapi.V(7, 0, 0)}
	assert.False(t, since.Allows(chrapi.V(6, 9, 0)))
	assert.True(t, since.Allows(chrapi.V(7, 0, 0)))
	assert.True(t, since.Allows(chrapi.V(7, 10, 0)))
	assert.Equal(t, "since 7.0.0", since.String())

	until := chrapi.Constraint{Op: chrapi.Until, Version: chrapi.V(7, 0, 0)}
	assert.True(t, until.Allows(chrapi.V(6, 9, 0)))
	assert.True(t, until.Allows(chrapi.V(7, 0)))
	assert.False(t, until.Allows(chrapi.V(7, 10, 0)))
}

func TestTableExpected(t *testing.T) {
	tbl := chrapi.NewTable(chrapi.V(1))
	tbl.Define("CHR_plain", chrapi.ULong)
	tbl.Define("CHR_new", chrapi.ULong).Since(7, 0, 0)
	tbl.Define("CHR_old", chrapi.ULong).Until(6, 50)

	assert.True(t, tbl.Expected("CHR_plain", chrapi.V(6, 9, 0)))
	assert.True(t, tbl.Expected("CHR_unknown", chrapi.V(6, 9, 0)))
	assert.True(t, tbl.Expected("CHR_new", nil))
	assert.False(t, tbl.Expected("CHR_new", chrapi.V(6, 9, 0)))
	assert.True(t, tbl.Expected("CHR_new", chrapi.V(7, 10, 0)))
	assert.True(t, tbl.Expected("CHR_old", chrapi.V(6, 50)))
	assert.False(t, tbl.Expected("CHR_old", chrapi.V(7, 0)))
}

func TestTableDefineTwicePanics(t *testing.T) {
	tbl := chrapi.NewTable(chrapi.V(1))
	tbl.Define("CHR_x")
	assert.Panics(t, func() { tbl.Define("CHR_x") })
}

func TestStandardTable(t *testing.T) {
	tbl := chrapi.Standard()
	assert.Equal(t, chrapi.TableVersion, tbl.Version)

	f, ok := tbl.Lookup("CHR_pair_get_e1_addr")
	require.True(t, ok)
	require.Len(t, f.Inputs(), 1)
	require.Len(t, f.Outputs(), 1)
	assert.Equal(t, chrapi.MaxAddr, f.Outputs()[0].MaxLength)

	swap, ok := tbl.Lookup("CHR_pair_swap_endpoints")
	require.True(t, ok)
	require.NotNil(t, swap.Constraint)
	assert.Equal(t, chrapi.Since, swap.Constraint.Op)

	seen := map[string]bool{}
	for _, fn := range tbl.Functions() {
		assert.False(t, seen[fn.Name], fn.Name)
		seen[fn.Name] = true
	}
	assert.True(t, seen["CHR_test_query_stop"])
}

func TestReturnCode(t *testing.T) {
	assert.Equal(t, "CHR_OK", chrapi.OK.String())
	assert.Equal(t, "CHR_TIMED_OUT", chrapi.TimedOut.String())
	assert.Equal(t, chrapi.ReturnCode(118), chrapi.TimedOut)
	assert.Equal(t, "CHR_RC(9999)", chrapi.ReturnCode(9999).String())
	assert.True(t, chrapi.OperationFailed.HasExtendedInfo())
	assert.True(t, chrapi.ObjectInvalid.HasExtendedInfo())
	assert.True(t, chrapi.AppGroupInvalid.HasExtendedInfo())
	assert.False(t, chrapi.TimedOut.HasExtendedInfo())
}

func TestParseEnums(t *testing.T) {
	p, ok := chrapi.ParseProtocol("tcp")
	require.True(t, ok)
	assert.Equal(t, chrapi.ProtocolTCP, p)
	_, ok = chrapi.ParseProtocol("sctp")
	assert.False(t, ok)

	e, ok := chrapi.ParseTestEnd("fixed_duration")
	require.True(t, ok)
	assert.Equal(t, chrapi.TestEndAfterFixedDuration, e)
}
