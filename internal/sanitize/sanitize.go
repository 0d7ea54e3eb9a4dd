// Package sanitize filters a SQL dump for cross-version portability before
// it is replayed against a possibly different server version or provider.
//
// The dump is treated as an opaque byte stream and processed line by line
// in binary mode: embedded column data may contain arbitrary non-UTF8
// bytes, so no textual decoding is ever attempted. Matching lines are
// dropped; everything else is copied verbatim.
package sanitize

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"

	apperrors "dashbackup/internal/errors"
	"dashbackup/internal/logger"
)

// VersionSpecificDirectives are server settings emitted by newer dump tools
// that older servers reject outright.
var VersionSpecificDirectives = [][]byte{
	[]byte("SET transaction_timeout"), // PostgreSQL 17+
	[]byte("SET idle_in_transaction_session_timeout"),
}

// ProviderMetaCommands are meta-commands proprietary to cloud providers
// (Supabase and friends) that a stock psql does not understand.
var ProviderMetaCommands = [][]byte{
	[]byte(`\restrict`),
	[]byte(`\unrestrict`),
}

// DefaultRules returns the ordered rule set: provider meta-commands first,
// then version-specific directives.
func DefaultRules() [][]byte {
	rules := make([][]byte, 0, len(ProviderMetaCommands)+len(VersionSpecificDirectives))
	rules = append(rules, ProviderMetaCommands...)
	rules = append(rules, VersionSpecificDirectives...)
	return rules
}

// Result reports what the filter saw and removed
type Result struct {
	LinesTotal    int64
	LinesFiltered int64
}

// SQLFile streams inputPath through the rule filter into a new file at
// outputPath. Gzipped inputs (.gz) are decompressed transparently; the
// output is always plain SQL ready for the restore tool.
//
// The input is never mutated. On any I/O failure the partially written
// output is removed before the error propagates, so no orphaned artifacts
// survive a failed sanitization.
func SQLFile(inputPath, outputPath string, rules [][]byte, log logger.Logger) (Result, error) {
	var res Result

	in, err := os.Open(inputPath)
	if err != nil {
		return res, apperrors.SanitizeIO(inputPath, err)
	}
	defer in.Close()

	var reader io.Reader = in
	var gz *pgzip.Reader
	if strings.HasSuffix(inputPath, ".gz") {
		gz, err = pgzip.NewReader(in)
		if err != nil {
			return res, apperrors.SanitizeIO(inputPath, err)
		}
		defer gz.Close()
		reader = gz
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return res, apperrors.SanitizeIO(outputPath, err)
	}

	// Any failure past this point must not leave a partial output behind
	fail := func(cause error) (Result, error) {
		out.Close()
		os.Remove(outputPath)
		return res, apperrors.SanitizeIO(outputPath, cause)
	}

	br := bufio.NewReaderSize(reader, 256*1024)
	bw := bufio.NewWriterSize(out, 256*1024)

	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			res.LinesTotal++
			if matchesAny(line, rules) {
				res.LinesFiltered++
				log.Debug("Filtered dump line", "prefix", previewLine(line))
			} else {
				if _, err := bw.Write(line); err != nil {
					return fail(err)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(readErr)
		}
	}

	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return res, apperrors.SanitizeIO(outputPath, err)
	}

	log.Info("Dump sanitized for cross-version restore",
		"lines_total", res.LinesTotal, "lines_filtered", res.LinesFiltered)
	return res, nil
}

// matchesAny checks the stripped line against every rule prefix in order
func matchesAny(line []byte, rules [][]byte) bool {
	stripped := bytes.TrimSpace(line)
	for _, rule := range rules {
		if bytes.HasPrefix(stripped, rule) {
			return true
		}
	}
	return false
}

// previewLine truncates a filtered line for debug logging
func previewLine(line []byte) string {
	s := bytes.TrimSpace(line)
	if len(s) > 50 {
		s = s[:50]
	}
	return string(s)
}
