// Package errors provides structured error types for dashbackup
// with error codes, categories, and a clear split between fatal
// failures that abort an operation and warnings that are logged
// at their site and never propagate.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error codes for dashbackup
// Format: DASHBACKUP-<CATEGORY><NUMBER>
// Categories: C=Config, D=Data, E=Environment, R=Restore
const (
	// Configuration errors (user fix)
	ErrCodeInvalidConfig ErrorCode = "DASHBACKUP-C001"
	ErrCodeInvalidName   ErrorCode = "DASHBACKUP-C002"

	// Data errors (investigate)
	ErrCodeBackupNotFound ErrorCode = "DASHBACKUP-D001"
	ErrCodeSanitizeIO     ErrorCode = "DASHBACKUP-D002"

	// Environment errors (infrastructure fix)
	ErrCodeDumpFailed  ErrorCode = "DASHBACKUP-E001"
	ErrCodeToolMissing ErrorCode = "DASHBACKUP-E002"
	ErrCodeDiskFull    ErrorCode = "DASHBACKUP-E003"

	// Restore errors
	ErrCodeRestoreFailed  ErrorCode = "DASHBACKUP-R001"
	ErrCodeRestoreTimeout ErrorCode = "DASHBACKUP-R002"
)

// Category represents error categories
type Category string

const (
	CategoryConfig      Category = "configuration"
	CategoryData        Category = "data"
	CategoryEnvironment Category = "environment"
	CategoryRestore     Category = "restore"
)

// BackupError is a structured error with code, category, and details
type BackupError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Details  string
	Cause    error
}

// Error implements the error interface
func (e *BackupError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += fmt.Sprintf(": %s", e.Details)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for code-based comparison
func (e *BackupError) Is(target error) bool {
	if t, ok := target.(*BackupError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause adds an underlying cause
func (e *BackupError) WithCause(cause error) *BackupError {
	e.Cause = cause
	return e
}

// DumpFailed reports a nonzero exit from the dump tool. The captured
// stderr text is carried in Details for the caller's message.
func DumpFailed(stderr string, cause error) *BackupError {
	return &BackupError{
		Code:     ErrCodeDumpFailed,
		Category: CategoryEnvironment,
		Message:  "database dump failed",
		Details:  stderr,
		Cause:    cause,
	}
}

// ToolMissing reports a required external binary absent from PATH
func ToolMissing(tool string, cause error) *BackupError {
	return &BackupError{
		Code:     ErrCodeToolMissing,
		Category: CategoryEnvironment,
		Message:  fmt.Sprintf("required tool not found: %s", tool),
		Cause:    cause,
	}
}

// DiskFull reports insufficient free space in the backup directory
func DiskFull(dir string, freeMB, requiredMB uint64) *BackupError {
	return &BackupError{
		Code:     ErrCodeDiskFull,
		Category: CategoryEnvironment,
		Message:  "insufficient disk space for backup",
		Details:  fmt.Sprintf("%s has %d MB free, need %d MB", dir, freeMB, requiredMB),
	}
}

// BackupNotFound reports a missing restore target
func BackupNotFound(filename, searchDir string) *BackupError {
	return &BackupError{
		Code:     ErrCodeBackupNotFound,
		Category: CategoryData,
		Message:  fmt.Sprintf("backup not found: %s", filename),
		Details:  fmt.Sprintf("searched in %s", searchDir),
	}
}

// SanitizeIO reports a disk error while filtering a dump file.
// Partial output has already been removed when this is returned.
func SanitizeIO(path string, cause error) *BackupError {
	return &BackupError{
		Code:     ErrCodeSanitizeIO,
		Category: CategoryData,
		Message:  "dump sanitization failed",
		Details:  path,
		Cause:    cause,
	}
}

// RestoreFailed reports a fatal error marker in the restore tool output.
// firstError is the first ERROR line and becomes the user-facing message.
func RestoreFailed(firstError string) *BackupError {
	return &BackupError{
		Code:     ErrCodeRestoreFailed,
		Category: CategoryRestore,
		Message:  "database restore error",
		Details:  firstError,
	}
}

// RestoreTimeout reports a restore killed after the wall-clock budget
func RestoreTimeout(seconds float64) *BackupError {
	return &BackupError{
		Code:     ErrCodeRestoreTimeout,
		Category: CategoryRestore,
		Message:  fmt.Sprintf("restore timed out after %.0fs; the database might be too large", seconds),
	}
}

// InvalidName reports a backup filename that fails validation
func InvalidName(name, reason string) *BackupError {
	return &BackupError{
		Code:     ErrCodeInvalidName,
		Category: CategoryConfig,
		Message:  fmt.Sprintf("invalid backup name %q", name),
		Details:  reason,
	}
}

// InvalidConfig reports a malformed configuration value
func InvalidConfig(field, reason string) *BackupError {
	return &BackupError{
		Code:     ErrCodeInvalidConfig,
		Category: CategoryConfig,
		Message:  fmt.Sprintf("invalid configuration: %s", field),
		Details:  reason,
	}
}

// GetCode returns the error code if available
func GetCode(err error) ErrorCode {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Code
	}
	return ""
}

// GetCategory returns the error category if available
func GetCategory(err error) Category {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Category
	}
	return ""
}

// IsBackupNotFound reports whether err is a missing-backup failure
func IsBackupNotFound(err error) bool {
	return GetCode(err) == ErrCodeBackupNotFound
}

// IsRestoreTimeout reports whether err is a restore wall-clock timeout
func IsRestoreTimeout(err error) bool {
	return GetCode(err) == ErrCodeRestoreTimeout
}

// IsRestoreFailed reports whether err is a fatal restore tool error
func IsRestoreFailed(err error) bool {
	return GetCode(err) == ErrCodeRestoreFailed
}

// IsDumpFailed reports whether err is a dump tool failure
func IsDumpFailed(err error) bool {
	return GetCode(err) == ErrCodeDumpFailed
}
