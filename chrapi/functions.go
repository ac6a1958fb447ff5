// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

// TableVersion is the revision of the Standard table.
var TableVersion = V(0, 3, 0)

// Standard returns the function table used by the chariot runner: the api,
// test, runopts, pair, timing record, results and error entry points.
// Handles are passed as ULong literals; counts and timeouts are CHR_COUNT
// (ULong); CHR_FLOAT is a double.
func Standard() *Table {
	t := NewTable(TableVersion)

	// api
	t.Define("CHR_api_initialize", ULong, StringOut(MaxErrorInfo))
	t.Define("CHR_api_get_version", StringOut(MaxVersion))
	t.Define("CHR_api_get_build_level", StringOut(MaxVersion))
	t.Define("CHR_api_get_reporting_port", ULong, ParamOut(UShort))
	t.Define("CHR_api_get_return_msg", Long, StringOut(MaxReturnMsg))
	t.Define("CHR_api_get_max_pairs", ParamOut(ULong))

	// common
	t.Define("CHR_common_error_get_info", ULong, ULong, StringOut(MaxErrorInfo))
	t.Define("CHR_common_results_get_meas_time", ULong, ParamOut(Double))
	t.Define("CHR_common_results_get_bytes_sent_e1", ULong, ParamOut(Double))
	t.Define("CHR_common_results_get_bytes_recv_e1", ULong, ParamOut(Double))
	t.Define("CHR_common_results_get_trans_sent_e1", ULong, ParamOut(Double))

	// test
	t.Define("CHR_test_new", ParamOut(ULong))
	t.Define("CHR_test_delete", ULong)
	t.Define("CHR_test_load", ULong)
	t.Define("CHR_test_save", ULong)
	t.Define("CHR_test_set_filename", ULong, StringIn(MaxFilePath))
	t.Define("CHR_test_get_filename", ULong, StringOut(MaxFilePath))
	t.Define("CHR_test_add_pair", ULong, ULong)
	t.Define("CHR_test_start", ULong)
	t.Define("CHR_test_stop", ULong)
	t.Define("CHR_test_abandon", ULong)
	t.Define("CHR_test_query_stop", ULong, ULong)
	t.Define("CHR_test_get_pair_count", ULong, ParamOut(ULong))
	t.Define("CHR_test_get_pair", ULong, ULong, ParamOut(ULong))
	t.Define("CHR_test_get_runopts", ULong, ParamOut(ULong))
	t.Define("CHR_test_get_how_ended", ULong, ParamOut(Byte))

	// runopts
	t.Define("CHR_runopts_set_test_end", ULong, Byte)
	t.Define("CHR_runopts_get_test_end", ULong, ParamOut(Byte))
	t.Define("CHR_runopts_set_test_duration", ULong, ULong)
	t.Define("CHR_runopts_get_test_duration", ULong, ParamOut(ULong))

	// pair
	t.Define("CHR_pair_new", ParamOut(ULong))
	t.Define("CHR_pair_delete", ULong)
	t.Define("CHR_pair_copy", ULong, ULong)
	t.Define("CHR_pair_set_e1_addr", ULong, StringIn(MaxAddr))
	t.Define("CHR_pair_set_e2_addr", ULong, StringIn(MaxAddr))
	t.Define("CHR_pair_get_e1_addr", ULong, StringOut(MaxAddr))
	t.Define("CHR_pair_get_e2_addr", ULong, StringOut(MaxAddr))
	t.Define("CHR_pair_set_comment", ULong, StringIn(MaxPairComment))
	t.Define("CHR_pair_get_comment", ULong, StringOut(MaxPairComment))
	t.Define("CHR_pair_set_protocol", ULong, Byte)
	t.Define("CHR_pair_get_protocol", ULong, ParamOut(Byte))
	t.Define("CHR_pair_use_script_filename", ULong, StringIn(MaxFilePath))
	t.Define("CHR_pair_get_script_filename", ULong, StringOut(MaxFilePath))
	t.Define("CHR_pair_get_timing_record_count", ULong, ParamOut(ULong))
	t.Define("CHR_pair_get_timing_record", ULong, ULong, ParamOut(ULong))
	t.Define("CHR_pair_swap_endpoints", ULong).Since(6, 70)

	// timingrec
	t.Define("CHR_timingrec_get_elapsed", ULong, ParamOut(Double))
	t.Define("CHR_timingrec_get_end_to_end_delay", ULong, ParamOut(Double))

	return t
}
