package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := DumpFailed("pg_dump: connection refused", nil)

	msg := err.Error()
	if !strings.Contains(msg, string(ErrCodeDumpFailed)) {
		t.Errorf("message missing code: %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("message missing stderr details: %q", msg)
	}
}

func TestErrorIsByCode(t *testing.T) {
	err := BackupNotFound("backup_20260101_120000.sql", "/backups")

	if !errors.Is(err, &BackupError{Code: ErrCodeBackupNotFound}) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, &BackupError{Code: ErrCodeRestoreFailed}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := DumpFailed("stderr text", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}

	wrapped := fmt.Errorf("create backup: %w", err)
	if GetCode(wrapped) != ErrCodeDumpFailed {
		t.Error("GetCode should see through fmt.Errorf wrapping")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", BackupNotFound("x.sql", "/b"), IsBackupNotFound},
		{"timeout", RestoreTimeout(600), IsRestoreTimeout},
		{"restore failed", RestoreFailed("ERROR: relation exists"), IsRestoreFailed},
		{"dump failed", DumpFailed("boom", nil), IsDumpFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.pred(tc.err) {
				t.Errorf("predicate should match %v", tc.err)
			}
			if tc.pred(errors.New("plain")) {
				t.Error("predicate should not match a plain error")
			}
		})
	}
}

func TestRestoreFailedCarriesFirstErrorLine(t *testing.T) {
	first := `ERROR:  syntax error at or near "SET"`
	err := RestoreFailed(first)
	if !strings.Contains(err.Error(), first) {
		t.Errorf("RestoreFailed should carry the first error line, got %q", err.Error())
	}
}

func TestGetCategory(t *testing.T) {
	if GetCategory(SanitizeIO("/tmp/x", nil)) != CategoryData {
		t.Error("SanitizeIO should be a data error")
	}
	if GetCategory(errors.New("plain")) != "" {
		t.Error("plain error has no category")
	}
}
