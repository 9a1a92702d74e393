package suno

import (
	"fmt"
	"time"
)

// ConfigurationError reports a missing or unusable credential. It is a
// user-facing configuration problem, not a retryable fault.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("suno: missing %s, configure your api key first", e.Name)
}

// ValidationError reports a field or length violation detected before
// submission. Either Reason or Limit/Length is set.
type ValidationError struct {
	Field  string
	Limit  int
	Length int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("suno: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("suno: %s exceeds %d character limit (current: %d)", e.Field, e.Limit, e.Length)
}

// SubmissionError reports a failure while submitting the generation
// request: network failure, non-2xx response or a malformed response
// body. Submissions are never retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("suno: submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollError reports a generation failure returned by the service while
// polling, carrying the service-reported reason.
type PollError struct {
	TaskID string
	Status TaskStatus
	Reason string
}

func (e *PollError) Error() string {
	return fmt.Sprintf("suno: generation %s failed: %s", e.TaskID, e.Reason)
}

// TimeoutError reports that the polling ceiling was exceeded before the
// task reached a terminal state. The task id is preserved so the status
// can be rechecked later.
type TimeoutError struct {
	TaskID     string
	LastStatus TaskStatus
	Elapsed    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("suno: task %s did not complete within %s (last status: %s), it may still be processing, check back with the task id later",
		e.TaskID, e.Elapsed.Round(time.Second), e.LastStatus)
}

// FetchError reports a failed asset download or storage operation,
// naming the specific asset.
type FetchError struct {
	Asset string
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("suno: couldn't fetch %s (%s): %v", e.Asset, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
