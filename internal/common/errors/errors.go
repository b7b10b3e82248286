// Package errors provides standardized error handling for the sync service.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTransientNetwork ErrorCode = "TRANSIENT_NETWORK_ERROR"

	ErrCodeCandidateCreationFailed ErrorCode = "CANDIDATE_CREATION_FAILED"
	ErrCodeUploadFailed            ErrorCode = "UPLOAD_FAILED"
	ErrCodeFileIDMissing           ErrorCode = "FILE_ID_MISSING"
	ErrCodeFileDownloadFailed      ErrorCode = "FILE_DOWNLOAD_FAILED"

	ErrCodeUnknownRejectionReason ErrorCode = "UNKNOWN_REJECTION_REASON"
	ErrCodeMissingRejectionReason ErrorCode = "MISSING_REJECTION_REASON"

	ErrCodeApplicantNotFound   ErrorCode = "APPLICANT_NOT_FOUND"
	ErrCodeDuplicateApplicant  ErrorCode = "DUPLICATE_APPLICANT"
	ErrCodeInvalidEventPayload ErrorCode = "INVALID_EVENT_PAYLOAD"
	ErrCodeDirectoryLookup     ErrorCode = "DIRECTORY_LOOKUP_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the error code from err, or UNKNOWN_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "UNKNOWN_ERROR"
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewTransientNetworkError creates a retryable network/HTTP error.
func NewTransientNetworkError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientNetwork,
		Message:   "Transient error calling external API",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCandidateCreationError creates a non-retryable candidate creation error.
func NewCandidateCreationError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCandidateCreationFailed,
		Message:   "Failed to create candidate in tracking system",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUploadError creates a non-retryable file upload error wrapping the cause.
func NewUploadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   "Failed to upload file to tracking system",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewFileIDMissingError signals an upload response without a file id.
// Fatal for the whole upload batch.
func NewFileIDMissingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileIDMissing,
		Message:   "Upload response is missing a file id",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFileDownloadError creates a non-retryable attachment download error.
func NewFileDownloadError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileDownloadFailed,
		Message:   "Failed to download attachment",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnknownRejectionReasonError signals a reason id absent from the catalog
// even after a reload.
func NewUnknownRejectionReasonError(reasonID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownRejectionReason,
		Message:   "Rejection reason id not present in catalog",
		Details:   fmt.Sprintf("reasonId: %d", reasonID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingRejectionReasonError signals a rejected applicant whose log has no
// qualifying rejection entry. Reported once, then suppressed for consecutive
// cycles by the sticky last-sync-error flag.
func NewMissingRejectionReasonError(externalID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingRejectionReason,
		Message:   "No rejection reason found in applicant log",
		Details:   fmt.Sprintf("externalId: %d", externalID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicantNotFoundError creates a non-retryable lookup error.
func NewApplicantNotFoundError(id int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicantNotFound,
		Message:   "Applicant not found in local store",
		Details:   fmt.Sprintf("id: %d", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateApplicantError creates a non-retryable insert conflict error.
func NewDuplicateApplicantError(id int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateApplicant,
		Message:   "Applicant id already exists",
		Details:   fmt.Sprintf("id: %d, error: %s", id, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidEventPayloadError creates a non-retryable decode error.
func NewInvalidEventPayloadError(eventType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidEventPayload,
		Message:   "Failed to decode event payload",
		Details:   fmt.Sprintf("eventType: %s, error: %s", eventType, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDirectoryLookupError creates a retryable directory-API error.
func NewDirectoryLookupError(username string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDirectoryLookup,
		Message:   "Directory lookup failed",
		Details:   fmt.Sprintf("username: %s, error: %s", username, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
