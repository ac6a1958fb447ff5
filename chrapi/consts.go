// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

// String buffer sizes, including the terminating NUL.
const (
	MaxDirPath                = 301
	MaxFilename               = 301
	MaxFilePath               = MaxDirPath + MaxFilename
	MaxEmbeddedPayloadSize    = 27904
	MaxErrorInfo              = 4096
	MaxPairComment            = 65
	MaxAddr                   = 65
	MaxMulticastAddr          = 16
	MaxQoSName                = 65
	MaxApplScriptName         = 65
	MaxGroupName              = 65
	MaxVersion                = 32
	MaxReturnMsg              = 256
	MaxScriptVariableName     = 25
	MaxScriptVariableValue    = 65
	MaxCfgParm                = 512
	MaxAddrString             = MaxAddr
	BSSIDSize                 = 18
	MaxAppGroupName           = 25
	MaxAppGroupComment        = 129
	MaxAppGroupEventName      = 25
	MaxAppGroupEventComment   = 129
	MaxChannelName            = 33
	MaxReceiverName           = 33
	MaxChannelComment         = 65
	MaxReceiverComment        = 65
	SocketBufferDefault       = 2147483647
	Infinite           uint32 = 0xffffffff
)

// CHR_BOOLEAN
const (
	False uint8 = 0
	True  uint8 = 1
)

// DetailLevel selects how much context api_initialize and
// common_error_get_info report.
type DetailLevel uint32

const (
	DetailLevelNone     DetailLevel = 0x0000
	DetailLevelPrimary  DetailLevel = 0x00a3
	DetailLevelAdvanced DetailLevel = 0x0014 | DetailLevelPrimary
	DetailLevelAll      DetailLevel = 0x0148 | DetailLevelAdvanced
)

// Protocol is CHR_PROTOCOL.
type Protocol uint8

const (
	ProtocolTCP  Protocol = 2
	ProtocolIPX  Protocol = 3
	ProtocolSPX  Protocol = 4
	ProtocolUDP  Protocol = 5
	ProtocolRTP  Protocol = 6
	ProtocolTCP6 Protocol = 7
	ProtocolUDP6 Protocol = 8
	ProtocolRTP6 Protocol = 9
)

var protocolNames = map[string]Protocol{
	"tcp": ProtocolTCP, "ipx": ProtocolIPX, "spx": ProtocolSPX,
	"udp": ProtocolUDP, "rtp": ProtocolRTP, "tcp6": ProtocolTCP6,
	"udp6": ProtocolUDP6, "rtp6": ProtocolRTP6,
}

// ParseProtocol maps a lowercase protocol name such as "tcp" to its code.
func ParseProtocol(name string) (Protocol, bool) {
	p, ok := protocolNames[name]
	return p, ok
}

// TestEnd is CHR_TEST_END.
type TestEnd uint8

const (
	TestEndWhenFirstCompletes TestEnd = 1
	TestEndWhenAllComplete    TestEnd = 2
	TestEndAfterFixedDuration TestEnd = 3
)

var testEndNames = map[string]TestEnd{
	"first_completes": TestEndWhenFirstCompletes,
	"all_complete":    TestEndWhenAllComplete,
	"fixed_duration":  TestEndAfterFixedDuration,
}

// ParseTestEnd maps "first_completes", "all_complete" or "fixed_duration".
func ParseTestEnd(name string) (TestEnd, bool) {
	e, ok := testEndNames[name]
	return e, ok
}

// TestHowEnded is CHR_TEST_HOW_ENDED.
type TestHowEnded uint8

const (
	TestHowEndedUserStopped TestHowEnded = 1
	TestHowEndedError       TestHowEnded = 2
	TestHowEndedNormal      TestHowEnded = 3
)

// ThroughputUnits is CHR_THROUGHPUT_UNITS.
type ThroughputUnits uint8

const (
	ThroughputUnitsKB ThroughputUnits = 1
	ThroughputUnitskB ThroughputUnits = 2
	ThroughputUnitsKb ThroughputUnits = 3
	ThroughputUnitskb ThroughputUnits = 4
	ThroughputUnitsMb ThroughputUnits = 5
	ThroughputUnitsGb ThroughputUnits = 6
)

// ResultType is CHR_RESULTS.
type ResultType uint8

const (
	ResultsThroughput ResultType = iota + 1
	ResultsTransactionRate
	ResultsResponseTime
	ResultsJitter
	ResultsDelayVariation
	ResultsConsecutiveLost
	ResultsMOSEstimate
	ResultsRoundTripDelay
	ResultsOneWayDelay
	ResultsRValue
	ResultsEndToEndDelay
	ResultsRSSIE1
	ResultsRSSIE2
	ResultsDF
	ResultsMLR
	ResultsJoinLatency
	ResultsLeaveLatency
)
