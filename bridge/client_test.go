// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/vgirpc"
)

func TestResultFromRow(t *testing.T) {
	res, err := resultFromRow("CHR_pair_get_e1_addr", []any{int32(0), []byte("10.0.0.1"), uint32(8)})
	require.NoError(t, err)
	assert.Equal(t, chrapi.OK, res.Code)
	assert.Equal(t, []any{[]byte("10.0.0.1"), uint32(8)}, res.Outputs)

	res, err = resultFromRow("CHR_test_delete", []any{int32(chrapi.HandleInvalid)})
	require.NoError(t, err)
	assert.Equal(t, chrapi.HandleInvalid, res.Code)
	assert.Nil(t, res.Outputs)

	for _, row := range [][]any{nil, {}, {"0"}, {int64(0)}} {
		_, err = resultFromRow("CHR_test_new", row)
		assert.ErrorIs(t, err, vgirpc.ErrProtocol, "row %v", row)
	}
}
