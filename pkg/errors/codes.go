package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeBadRequest     ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_003"
	ErrCodeConflict       ErrorCode = "COMMON_004"
	ErrCodeTimeout        ErrorCode = "COMMON_005"
	ErrCodeValidation     ErrorCode = "COMMON_006"
	ErrCodeSerialization  ErrorCode = "COMMON_007"
	ErrCodeNotImplemented ErrorCode = "COMMON_008"
)

// Consolidation Error Codes
const (
	ErrCodeMalformedRecord     ErrorCode = "CON_001"
	ErrCodeAmbiguousMerge      ErrorCode = "CON_002"
	ErrCodeMergeCommitFailed   ErrorCode = "CON_003"
	ErrCodeRelationSweepFailed ErrorCode = "CON_004"
)

// Bridging Error Codes
const (
	ErrCodeBridgeCommitFailed ErrorCode = "BRG_001"
	ErrCodeUnknownRole        ErrorCode = "BRG_002"
	ErrCodeThresholdInvalid   ErrorCode = "BRG_003"
	ErrCodeScorerUnsupported  ErrorCode = "BRG_004"
)

// Store Error Codes
const (
	ErrCodeStoreUnavailable ErrorCode = "STORE_001"
	ErrCodeStoreQueryFailed ErrorCode = "STORE_002"
	ErrCodeIndexRebuildFailed ErrorCode = "STORE_003"
	ErrCodeLockNotAcquired  ErrorCode = "STORE_004"
)

// Aliases kept so call sites read naturally.
const (
	CodeInternal        = ErrCodeInternal
	CodeInvalidParam    = ErrCodeBadRequest
	ErrCodeInvalidParam = ErrCodeBadRequest
	CodeNotFound        = ErrCodeNotFound
	CodeConflict        = ErrCodeConflict
	CodeOK              = ErrorCode("OK")
	CodeUnknown         = ErrorCode("UNKNOWN")
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:       "internal error",
	ErrCodeBadRequest:     "bad request",
	ErrCodeNotFound:       "resource not found",
	ErrCodeConflict:       "resource conflict",
	ErrCodeTimeout:        "operation timed out",
	ErrCodeValidation:     "validation failed",
	ErrCodeSerialization:  "serialization failed",
	ErrCodeNotImplemented: "not implemented",

	ErrCodeMalformedRecord:     "malformed raw record",
	ErrCodeAmbiguousMerge:      "merge group spans incompatible types",
	ErrCodeMergeCommitFailed:   "failed to commit consolidated entities",
	ErrCodeRelationSweepFailed: "failed to remap raw relations",

	ErrCodeBridgeCommitFailed: "failed to commit bridge chunk",
	ErrCodeUnknownRole:        "unknown structural element role",
	ErrCodeThresholdInvalid:   "invalid bridging threshold",
	ErrCodeScorerUnsupported:  "unsupported similarity algorithm",

	ErrCodeStoreUnavailable:   "backing store unavailable",
	ErrCodeStoreQueryFailed:   "store query failed",
	ErrCodeIndexRebuildFailed: "candidate index rebuild failed",
	ErrCodeLockNotAcquired:    "distributed lock not acquired",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
