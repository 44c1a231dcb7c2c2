package fleet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks setup errors. They are the only failures that
	// abort a whole poll cycle.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMissingField marks an inventory record without a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrFetchFailure marks a transport failure, whether it happened once or
	// after retries were exhausted.
	ErrFetchFailure = errors.New("fetch failed")
)

// FetchError reports a failed log or inventory fetch for one instance.
type FetchError struct {
	InstanceID string
	Err        error
}

func (e *FetchError) Error() string {
	if e.InstanceID == "" {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("fetch failed for instance %s: %v", e.InstanceID, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailure, e.Err}
}

// MissingFieldError names the absent field of one inventory record.
type MissingFieldError struct {
	InstanceID string
	Field      string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("instance %s: %s: %s", e.InstanceID, ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// IssueKind classifies a per-instance failure recorded on a cycle report.
type IssueKind string

const (
	IssueFetch        IssueKind = "fetch"
	IssueParse        IssueKind = "parse"
	IssueMissingField IssueKind = "missing-field"
	IssueBreakerOpen  IssueKind = "breaker-open"
	IssueBalance      IssueKind = "balance"
)

// Issue is a per-instance failure. Issues never abort the rest of the fleet.
type Issue struct {
	InstanceID string    `json:"instanceId,omitempty"`
	Kind       IssueKind `json:"kind"`
	Detail     string    `json:"detail"`
}

// NewIssue records err against an instance.
func NewIssue(instanceID string, kind IssueKind, err error) Issue {
	return Issue{InstanceID: instanceID, Kind: kind, Detail: err.Error()}
}
