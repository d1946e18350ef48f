// Package status holds the closed status enumerations of the tracked
// entities and their display metadata.
package status

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidStatus        = errors.New("INVALID_STATUS")
	ErrUnknownKind          = errors.New("UNKNOWN_KIND")
	ErrTransitionNotAllowed = errors.New("TRANSITION_NOT_ALLOWED")
)

// Kind identifies a tracked entity type.
type Kind string

const (
	KindApplication Kind = "application"
	KindJobPool     Kind = "job_pool"
)

func (k Kind) String() string { return string(k) }

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindApplication:
		return KindApplication, nil
	case KindJobPool, "job-pool", "jobpool":
		return KindJobPool, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

type Status string

const (
	Pending     Status = "pending"
	Reviewed    Status = "reviewed"
	Contacted   Status = "contacted"
	Interested  Status = "interested"
	Shortlisted Status = "shortlisted"
	Interview   Status = "interview"
	Offered     Status = "offered"
	Hired       Status = "hired"
	Rejected    Status = "rejected"
	Withdrawn   Status = "withdrawn"
)

func (s Status) String() string { return string(s) }

// Initial is the status every tracked entity is created with.
const Initial = Pending

var applicationStatuses = []Status{
	Pending, Reviewed, Shortlisted, Rejected, Interview, Offered, Hired, Withdrawn,
}

var poolStatuses = []Status{
	Pending, Contacted, Interested, Shortlisted, Interview, Offered, Hired, Rejected, Withdrawn,
}

// ApplicationStatuses returns the job application enumeration in display order.
func ApplicationStatuses() []Status {
	return append([]Status(nil), applicationStatuses...)
}

// PoolStatuses returns the candidate pool enumeration in display order.
func PoolStatuses() []Status {
	return append([]Status(nil), poolStatuses...)
}

func Statuses(kind Kind) []Status {
	switch kind {
	case KindApplication:
		return ApplicationStatuses()
	case KindJobPool:
		return PoolStatuses()
	}
	return nil
}

// Parse returns ErrInvalidStatus unless raw names a member of kind's
// enumeration. Surrounding whitespace and letter case are ignored.
func Parse(kind Kind, raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Statuses(kind) {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a %s status", ErrInvalidStatus, raw, kind)
}

func IsValid(kind Kind, s Status) bool {
	_, err := Parse(kind, string(s))
	return err == nil
}

// IsTerminal reports the statuses that end a pipeline. Only consulted when
// transition enforcement is switched on.
func IsTerminal(s Status) bool {
	switch s {
	case Hired, Rejected, Withdrawn:
		return true
	}
	return false
}
