package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Module returns the code prefix ("COMMON", "ING", ...).
func (c ErrorCode) Module() string {
	if i := strings.IndexByte(string(c), '_'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_016"
	ErrCodeStorageError       ErrorCode = "COMMON_017"
)

// Aliases
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Calendar Error Codes
const (
	ErrCodeCalendarInvalidDate     ErrorCode = "CAL_001"
	ErrCodeCalendarNegativeDays    ErrorCode = "CAL_002"
	ErrCodeCalendarScanExhausted   ErrorCode = "CAL_003"
	ErrCodeCalendarSourceInvalid   ErrorCode = "CAL_004"
	ErrCodeJurisdictionUnsupported ErrorCode = "CAL_005"
)

// Rule Engine Error Codes
const (
	ErrCodeRuleTableInvalid ErrorCode = "RUL_001"
	ErrCodeRuleInputInvalid ErrorCode = "RUL_002"
)

// Ingestion Error Codes
const (
	ErrCodeRunInProgress         ErrorCode = "ING_001"
	ErrCodeDuplicateNotification ErrorCode = "ING_002"
	ErrCodeRecipientNotFound     ErrorCode = "ING_003"
	ErrCodeNotificationNotFound  ErrorCode = "ING_004"
	ErrCodeInvalidStatusChange   ErrorCode = "ING_005"
	ErrCodeRecordOutOfWindow     ErrorCode = "ING_006"
)

// Source Error Codes
const (
	ErrCodeSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeSourceTimeout     ErrorCode = "SRC_002"
	ErrCodeSourceBadResponse ErrorCode = "SRC_003"
)

// Extraction Error Codes
const (
	ErrCodeExtractionUnavailable ErrorCode = "EXT_001"
	ErrCodeExtractionMalformed   ErrorCode = "EXT_002"
	ErrCodeExtractionEmpty       ErrorCode = "EXT_003"
)

// Dispatch / Messaging Error Codes
const (
	ErrCodeDispatchNotFound       ErrorCode = "DSP_001"
	ErrCodeRenderFailed           ErrorCode = "DSP_002"
	ErrCodeDispatchInProgress     ErrorCode = "DSP_003"
	ErrCodeMessagingNotConfigured ErrorCode = "MSG_001"
	ErrCodeMessagingSendFailed    ErrorCode = "MSG_002"
)

// Inbound Error Codes
const (
	ErrCodeInboundPayloadInvalid ErrorCode = "INB_001"
	ErrCodeIntentUnavailable     ErrorCode = "INB_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the webhook and
// operations endpoints.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeMessageQueueError:  http.StatusServiceUnavailable,
	ErrCodeStorageError:       http.StatusInternalServerError,

	ErrCodeCalendarInvalidDate:     http.StatusBadRequest,
	ErrCodeCalendarNegativeDays:    http.StatusBadRequest,
	ErrCodeCalendarScanExhausted:   http.StatusInternalServerError,
	ErrCodeCalendarSourceInvalid:   http.StatusInternalServerError,
	ErrCodeJurisdictionUnsupported: http.StatusBadRequest,

	ErrCodeRuleTableInvalid: http.StatusInternalServerError,
	ErrCodeRuleInputInvalid: http.StatusBadRequest,

	ErrCodeRunInProgress:         http.StatusConflict,
	ErrCodeDuplicateNotification: http.StatusConflict,
	ErrCodeRecipientNotFound:     http.StatusNotFound,
	ErrCodeNotificationNotFound:  http.StatusNotFound,
	ErrCodeInvalidStatusChange:   http.StatusConflict,
	ErrCodeRecordOutOfWindow:     http.StatusUnprocessableEntity,

	ErrCodeSourceUnavailable: http.StatusBadGateway,
	ErrCodeSourceTimeout:     http.StatusGatewayTimeout,
	ErrCodeSourceBadResponse: http.StatusBadGateway,

	ErrCodeExtractionUnavailable: http.StatusBadGateway,
	ErrCodeExtractionMalformed:   http.StatusUnprocessableEntity,
	ErrCodeExtractionEmpty:       http.StatusUnprocessableEntity,

	ErrCodeDispatchNotFound:       http.StatusNotFound,
	ErrCodeRenderFailed:           http.StatusInternalServerError,
	ErrCodeDispatchInProgress:     http.StatusConflict,
	ErrCodeMessagingNotConfigured: http.StatusServiceUnavailable,
	ErrCodeMessagingSendFailed:    http.StatusBadGateway,

	ErrCodeInboundPayloadInvalid: http.StatusBadRequest,
	ErrCodeIntentUnavailable:     http.StatusBadGateway,
}

// HTTPStatus returns the HTTP status for code, 500 when unmapped.
func HTTPStatus(code ErrorCode) int {
	if s, ok := ErrorCodeHTTPStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
