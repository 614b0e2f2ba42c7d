// Package recurrence holds the pure scheduling rules for plant care tasks:
// mapping a recurrence category to its repeat interval in days, classifying
// a task into a status bucket relative to a given date, and computing the
// next due date after completion. It performs no I/O and never reads the
// clock; callers pass "today" in.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Category is the enumerated repeat pattern for a care task.
type Category string

const (
	None    Category = "none"
	Daily   Category = "daily"
	Weekly  Category = "weekly"
	Monthly Category = "monthly"
	Weekend Category = "weekend"
	Custom  Category = "custom"
)

// ErrFrequencyRequired is returned when a custom-recurrence task is created
// or updated without an explicit positive frequency.
var ErrFrequencyRequired = errors.New("custom recurrence requires a positive frequency in days")

var canonicalDays = map[Category]int{
	None:    0,
	Daily:   1,
	Weekly:  7,
	Monthly: 30,
	Weekend: 7,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	if c == Custom {
		return true
	}
	_, ok := canonicalDays[c]
	return ok
}

// Days returns the canonical frequency in days for c. For Custom the
// frequency is user-supplied, so ok is false and the caller must provide it.
func Days(c Category) (days int, ok bool) {
	days, ok = canonicalDays[c]
	return days, ok
}

// ResolveFrequency applies the category/frequency invariant: non-custom
// categories always use their canonical interval regardless of the supplied
// value; Custom must carry a positive user-supplied frequency.
func ResolveFrequency(c Category, supplied int) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("unknown recurrence category %q", c)
	}
	if days, ok := Days(c); ok {
		return days, nil
	}
	if supplied <= 0 {
		return 0, ErrFrequencyRequired
	}
	return supplied, nil
}

// Bucket is the status classification of a task relative to a date.
type Bucket string

const (
	BucketDelayed   Bucket = "delayed"
	BucketToday     Bucket = "today"
	BucketUpcoming  Bucket = "upcoming"
	BucketCompleted Bucket = "completed"
)

// Classify assigns exactly one bucket. A completed task is "completed"
// regardless of its due date. Otherwise the due date is compared to today
// at civil-date granularity.
func Classify(due, today time.Time, completed bool) Bucket {
	if completed {
		return BucketCompleted
	}
	d := civil(due)
	t := civil(today)
	switch {
	case d.Before(t):
		return BucketDelayed
	case d.After(t):
		return BucketUpcoming
	default:
		return BucketToday
	}
}

// NextDue returns the due date one frequency interval after from, which
// callers pass as the completion date so overdue tasks reschedule relative
// to when they were actually done. Tasks with a non-positive frequency
// (category "none") are scheduled exactly once and do not roll; ok is false
// for them. The weekend category keeps the documented 7-day interval but
// snaps the rolled date forward to the next Saturday so the task always
// lands on a weekend.
func NextDue(from time.Time, freqDays int, c Category) (time.Time, bool) {
	if freqDays <= 0 {
		return from, false
	}
	next := civil(from).AddDate(0, 0, freqDays)
	if c == Weekend {
		next = snapToSaturday(next)
	}
	return next, true
}

func snapToSaturday(d time.Time) time.Time {
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// civil truncates a timestamp to its calendar date in its own location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return civil(a).Equal(civil(b))
}
