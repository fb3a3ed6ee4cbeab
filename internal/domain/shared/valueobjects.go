// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a learner. Opaque to this service; the identity
// provider owns its format.
type UserID string

// IsValid checks if the user ID is non-empty after trimming.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrMissingUserID
	}
	return uid, nil
}

// CourseID identifies a course in the Course Catalog.
type CourseID int64

// IsValid checks if the course ID is positive.
func (c CourseID) IsValid() bool {
	return c > 0
}

// Int64 returns the underlying int64 value.
func (c CourseID) Int64() int64 {
	return int64(c)
}

// String returns the string representation.
func (c CourseID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// NewCourseID creates a new CourseID with validation.
func NewCourseID(id int64) (CourseID, error) {
	if id <= 0 {
		return 0, ErrInvalidCourseID
	}
	return CourseID(id), nil
}

// ParseCourseID parses a CourseID from its string form (e.g. a URL segment).
func ParseCourseID(s string) (CourseID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidCourseID
	}
	return NewCourseID(n)
}

// UnitID identifies a trackable course unit: a lesson, quiz, or video segment.
type UnitID string

// IsValid checks if the unit ID is non-empty after trimming.
func (u UnitID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UnitID) String() string {
	return string(u)
}

// NewUnitID creates a new UnitID with validation.
func NewUnitID(id string) (UnitID, error) {
	uid := UnitID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrMissingUnitID
	}
	return uid, nil
}

// EventID is the idempotency key of an activity event. Clients may supply
// their own; the validator derives one deterministically when they do not.
type EventID string

// IsValid checks if the event ID is non-empty.
func (e EventID) IsValid() bool {
	return e != ""
}

// String returns the string representation.
func (e EventID) String() string {
	return string(e)
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Key
// ═══════════════════════════════════════════════════════════════════════════

// ProgressKey addresses one (user, course) progress record. All mutations
// for a key are serialized; different keys proceed in parallel.
type ProgressKey struct {
	UserID   UserID
	CourseID CourseID
}

// IsValid checks both components.
func (k ProgressKey) IsValid() bool {
	return k.UserID.IsValid() && k.CourseID.IsValid()
}

// String returns a stable textual form used for lock addressing and log fields.
func (k ProgressKey) String() string {
	return fmt.Sprintf("%s/%d", k.UserID, k.CourseID)
}

// NewProgressKey creates a validated ProgressKey.
func NewProgressKey(userID UserID, courseID CourseID) (ProgressKey, error) {
	k := ProgressKey{UserID: userID, CourseID: courseID}
	if !k.UserID.IsValid() {
		return ProgressKey{}, ErrMissingUserID
	}
	if !k.CourseID.IsValid() {
		return ProgressKey{}, ErrInvalidCourseID
	}
	return k, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Ratio Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Ratio is a progress fraction in [0, 1].
type Ratio float64

// IsValid checks the bounds.
func (r Ratio) IsValid() bool {
	return r >= 0 && r <= 1
}

// Float64 returns the underlying float.
func (r Ratio) Float64() float64 {
	return float64(r)
}

// Clamp forces the value into [0, 1]. Events for units the catalog does not
// list can push the raw fraction past 1; the exposed ratio never exceeds it.
func (r Ratio) Clamp() Ratio {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// NewRatio computes completed/total, clamped. A course with zero known units
// yields 0, never NaN.
func NewRatio(completed, total int) Ratio {
	if total <= 0 {
		return 0
	}
	return (Ratio(completed) / Ratio(total)).Clamp()
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}
