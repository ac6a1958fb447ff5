// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import "fmt"

// ReturnCode is a CHR_API_RC value.
type ReturnCode int32

const rcBase = 100

const (
	OK                              ReturnCode = 0
	HandleInvalid                   ReturnCode = rcBase + 1
	StringTooLong                   ReturnCode = rcBase + 2
	PointerInvalid                  ReturnCode = rcBase + 3
	NoSuchObject                    ReturnCode = rcBase + 4
	TestNotRun                      ReturnCode = rcBase + 5
	TestRunning                     ReturnCode = rcBase + 6
	ObjectInUse                     ReturnCode = rcBase + 7
	OperationFailed                 ReturnCode = rcBase + 8
	NoTestFile                      ReturnCode = rcBase + 9
	ResultsNotCleared               ReturnCode = rcBase + 10
	PairLimitExceeded               ReturnCode = rcBase + 11
	ObjectInvalid                   ReturnCode = rcBase + 12
	APINotInitialized               ReturnCode = rcBase + 13
	NoResults                       ReturnCode = rcBase + 14
	ValueInvalid                    ReturnCode = rcBase + 15
	NoSuchValue                     ReturnCode = rcBase + 16
	NoScriptInUse                   ReturnCode = rcBase + 17
	TimedOut                        ReturnCode = rcBase + 18
	BufferTooSmall                  ReturnCode = rcBase + 19
	NoMemory                        ReturnCode = rcBase + 20
	PgmInternalError                ReturnCode = rcBase + 21
	TracertNotRun                   ReturnCode = rcBase + 22
	TracertRunning                  ReturnCode = rcBase + 23
	NotSupported                    ReturnCode = rcBase + 24
	NoCodecInUse                    ReturnCode = rcBase + 25
	NotLicensed                     ReturnCode = rcBase + 26
	ScriptTooLarge                  ReturnCode = rcBase + 27
	LicenseHasExpired               ReturnCode = rcBase + 28
	NoNetworkConfiguration          ReturnCode = rcBase + 29
	InvalidNetworkConfiguration     ReturnCode = rcBase + 30
	ErrorAccessingTestserverSession ReturnCode = rcBase + 31
	FunctionNotSupported            ReturnCode = rcBase + 32
	TestNotSaved                    ReturnCode = rcBase + 33
	LicenseWillExpire               ReturnCode = rcBase + 34
	AppGroupNotValidated            ReturnCode = rcBase + 35
	AppGroupInvalid                 ReturnCode = rcBase + 36
	AppGroupDuplicateName           ReturnCode = rcBase + 37
	PayloadFileTooLarge             ReturnCode = rcBase + 38
	NoApplifierConfiguration        ReturnCode = rcBase + 39
	ChannelDuplicateName            ReturnCode = rcBase + 40
	ReceiverDuplicateName           ReturnCode = rcBase + 41
	IPTVInvalid                     ReturnCode = rcBase + 42
	DuplicateName                   ReturnCode = rcBase + 43
	LicenseAlreadyBorrowed          ReturnCode = rcBase + 44
	FloatingLicenseInUse            ReturnCode = rcBase + 45
	NoMultisessionLicense           ReturnCode = rcBase + 46
	RaveSingleRunning               ReturnCode = rcBase + 47
	RaveMultiRunning                ReturnCode = rcBase + 48
)

var returnCodeNames = map[ReturnCode]string{
	OK:                              "CHR_OK",
	HandleInvalid:                   "CHR_HANDLE_INVALID",
	StringTooLong:                   "CHR_STRING_TOO_LONG",
	PointerInvalid:                  "CHR_POINTER_INVALID",
	NoSuchObject:                    "CHR_NO_SUCH_OBJECT",
	TestNotRun:                      "CHR_TEST_NOT_RUN",
	TestRunning:                     "CHR_TEST_RUNNING",
	ObjectInUse:                     "CHR_OBJECT_IN_USE",
	OperationFailed:                 "CHR_OPERATION_FAILED",
	NoTestFile:                      "CHR_NO_TEST_FILE",
	ResultsNotCleared:               "CHR_RESULTS_NOT_CLEARED",
	PairLimitExceeded:               "CHR_PAIR_LIMIT_EXCEEDED",
	ObjectInvalid:                   "CHR_OBJECT_INVALID",
	APINotInitialized:               "CHR_API_NOT_INITIALIZED",
	NoResults:                       "CHR_NO_RESULTS",
	ValueInvalid:                    "CHR_VALUE_INVALID",
	NoSuchValue:                     "CHR_NO_SUCH_VALUE",
	NoScriptInUse:                   "CHR_NO_SCRIPT_IN_USE",
	TimedOut:                        "CHR_TIMED_OUT",
	BufferTooSmall:                  "CHR_BUFFER_TOO_SMALL",
	NoMemory:                        "CHR_NO_MEMORY",
	PgmInternalError:                "CHR_PGM_INTERNAL_ERROR",
	TracertNotRun:                   "CHR_TRACERT_NOT_RUN",
	TracertRunning:                  "CHR_TRACERT_RUNNING",
	NotSupported:                    "CHR_NOT_SUPPORTED",
	NoCodecInUse:                    "CHR_NO_CODEC_IN_USE",
	NotLicensed:                     "CHR_NOT_LICENSED",
	ScriptTooLarge:                  "CHR_SCRIPT_TOO_LARGE",
	LicenseHasExpired:               "CHR_LICENSE_HAS_EXPIRED",
	NoNetworkConfiguration:          "CHR_NO_NETWORK_CONFIGURATION",
	InvalidNetworkConfiguration:     "CHR_INVALID_NETWORK_CONFIGURATION",
	ErrorAccessingTestserverSession: "CHR_ERROR_ACCESSING_TESTSERVER_SESSION",
	FunctionNotSupported:            "CHR_FUNCTION_NOT_SUPPORTED",
	TestNotSaved:                    "CHR_TEST_NOT_SAVED",
	LicenseWillExpire:               "CHR_LICENSE_WILL_EXPIRE",
	AppGroupNotValidated:            "CHR_APP_GROUP_NOT_VALIDATED",
	AppGroupInvalid:                 "CHR_APP_GROUP_INVALID",
	AppGroupDuplicateName:           "CHR_APP_GROUP_DUPLICATE_NAME",
	PayloadFileTooLarge:             "CHR_PAYLOAD_FILE_TOO_LARGE",
	NoApplifierConfiguration:        "CHR_NO_APPLIFIER_CONFIGURATION",
	ChannelDuplicateName:            "CHR_CHANNEL_DUPLICATE_NAME",
	ReceiverDuplicateName:           "CHR_RECEIVER_DUPLICATE_NAME",
	IPTVInvalid:                     "CHR_IPTV_INVALID",
	DuplicateName:                   "CHR_DUPLICATE_NAME",
	LicenseAlreadyBorrowed:          "CHR_LICENSE_ALREADY_BORROWED",
	FloatingLicenseInUse:            "CHR_FLOATING_LICENSE_IN_USE",
	NoMultisessionLicense:           "CHR_NO_MULTISESSION_LICENSE",
	RaveSingleRunning:               "CHR_RAVE_SINGLE_RUNNING",
	RaveMultiRunning:                "CHR_RAVE_MULTI_RUNNING",
}

func (rc ReturnCode) String() string {
	if name, ok := returnCodeNames[rc]; ok {
		return name
	}
	return fmt.Sprintf("CHR_RC(%d)", int32(rc))
}

// HasExtendedInfo reports whether common_error_get_info carries detail for
// this code.
func (rc ReturnCode) HasExtendedInfo() bool {
	return rc == OperationFailed || rc == ObjectInvalid || rc == AppGroupInvalid
}
