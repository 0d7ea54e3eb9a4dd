// Package retention prunes old backups with a grandfather-father-son
// scheme: the newest backup per calendar day, ISO week, and month is kept
// for the configured number of recent buckets, and the globally newest
// backup is always retained regardless of policy.
package retention

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"dashbackup/internal/catalog"
	"dashbackup/internal/logger"
)

// Policy selects how many recent buckets survive per tier.
// Zero disables a tier; all zeros keeps only the newest backup.
type Policy struct {
	Days   int
	Weeks  int
	Months int
}

func (p Policy) String() string {
	return fmt.Sprintf("%dd/%dw/%dm", p.Days, p.Weeks, p.Months)
}

// Result reports what a prune run kept and removed
type Result struct {
	Kept       []string
	Deleted    []string
	SpaceFreed int64
}

// HumanSpaceFreed formats the reclaimed bytes for display
func (r *Result) HumanSpaceFreed() string {
	return humanize.Bytes(uint64(r.SpaceFreed))
}

// Plan computes the set of filenames to keep. records must be sorted
// newest first, as the catalog returns them.
func Plan(records []catalog.Record, policy Policy) map[string]bool {
	keep := make(map[string]bool)
	if len(records) == 0 {
		return keep
	}

	// The newest backup survives every policy
	keep[records[0].Filename] = true

	markTier(records, keep, policy.Days, func(r catalog.Record) string {
		return r.CreatedAt.Format("2006-01-02")
	})
	markTier(records, keep, policy.Weeks, func(r catalog.Record) string {
		year, week := r.CreatedAt.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	})
	markTier(records, keep, policy.Months, func(r catalog.Record) string {
		return r.CreatedAt.Format("2006-01")
	})

	return keep
}

// markTier keeps the newest record in each of the first n distinct
// buckets. Records arrive newest first, so the first record seen for a
// bucket is its newest member.
func markTier(records []catalog.Record, keep map[string]bool, n int, key func(catalog.Record) string) {
	if n <= 0 {
		return
	}
	seen := make(map[string]bool)
	for _, r := range records {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		keep[r.Filename] = true
		if len(seen) == n {
			return
		}
	}
}

// Apply prunes the catalog according to policy. Individual delete
// failures are logged and collected but never abort the run; the
// aggregated error is returned alongside the partial result. With
// dryRun set, nothing is removed and Deleted lists the candidates.
func Apply(cat *catalog.Catalog, policy Policy, dryRun bool, log logger.Logger) (*Result, error) {
	records, err := cat.List()
	if err != nil {
		return nil, err
	}

	keep := Plan(records, policy)
	res := &Result{}
	var errs *multierror.Error

	for _, r := range records {
		if keep[r.Filename] {
			res.Kept = append(res.Kept, r.Filename)
			continue
		}

		if dryRun {
			res.Deleted = append(res.Deleted, r.Filename)
			res.SpaceFreed += r.SizeBytes
			continue
		}

		if err := cat.Delete(r.Filename); err != nil {
			log.Warn("Could not delete expired backup", "file", r.Filename, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("delete %s: %w", r.Filename, err))
			continue
		}

		log.Debug("Deleted expired backup", "file", r.Filename, "size", r.HumanSize())
		res.Deleted = append(res.Deleted, r.Filename)
		res.SpaceFreed += r.SizeBytes
	}

	if len(res.Deleted) > 0 {
		log.Info("Retention applied",
			"file", fmt.Sprintf("%d kept, %d deleted", len(res.Kept), len(res.Deleted)),
			"size", res.HumanSpaceFreed())
	}

	return res, errs.ErrorOrNil()
}
