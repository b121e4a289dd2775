package recordstore

import "github.com/kurihiro0119/github-issue-insights/internal/record"

// PendingIndices returns, in input order, the indices of records that lack
// field, pass eligible (nil accepts all) and have failed fewer than
// maxFailures times in earlier runs (0 disables the cap).
func PendingIndices(records []*record.Record, field string, eligible func(*record.Record) bool, maxFailures int) []int {
	var pending []int
	for i, r := range records {
		if r.Has(field) {
			continue
		}
		if eligible != nil && !eligible(r) {
			continue
		}
		if maxFailures > 0 && Failures(r, field) >= maxFailures {
			continue
		}
		pending = append(pending, i)
	}
	return pending
}

// Failures returns how many runs gave up on field for this record
func Failures(r *record.Record, field string) int {
	return r.Int(field + FailureSuffix)
}

// MarkFailed increments the failure counter for field
func MarkFailed(r *record.Record, field string) error {
	return r.Set(field+FailureSuffix, Failures(r, field)+1)
}

// ClearFailures drops the failure counter once field has a result
func ClearFailures(r *record.Record, field string) {
	r.Delete(field + FailureSuffix)
}

// CountWith returns how many records carry field
func CountWith(records []*record.Record, field string) int {
	n := 0
	for _, r := range records {
		if r.Has(field) {
			n++
		}
	}
	return n
}
