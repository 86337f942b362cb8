/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package errors provides the error taxonomy shared by the sync processors,
// the storage layers and the remote authority. Every error carries a
// StatusCode so that the RPC layer can translate it consistently.
package errors

import (
	"errors"
	"fmt"

	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// StatusError represents an error that carries an error status.
type StatusError interface {
	error
	Status() StatusCode
}

// StatusOf extracts the error status from an error. It returns 0 when no
// error in the chain carries a status.
func StatusOf(err error) StatusCode {
	if err == nil {
		return 0
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status()
	}

	return 0
}

// IsStatus checks if the given error has the specified error status.
func IsStatus(err error, code StatusCode) bool {
	return StatusOf(err) == code
}

// UnexpectedError is the catch-all wrapper for defects. It always carries the
// cause.
type UnexpectedError struct {
	Cause error
}

// Unexpected wraps the given cause into an UnexpectedError. An error that is
// already unexpected is returned as is.
func Unexpected(cause error) error {
	if cause == nil {
		return nil
	}
	var unexpected *UnexpectedError
	if errors.As(cause, &unexpected) {
		return cause
	}
	return &UnexpectedError{Cause: cause}
}

// Unexpectedf formats a new UnexpectedError.
func Unexpectedf(format string, args ...interface{}) error {
	return &UnexpectedError{Cause: fmt.Errorf(format, args...)}
}

// Error returns the error message.
func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %s", e.Cause)
}

// Unwrap returns the cause.
func (e *UnexpectedError) Unwrap() error {
	return e.Cause
}

// Status returns the error status.
func (e *UnexpectedError) Status() StatusCode {
	return ErrCodeInternal
}

// SyncError is raised when synchronization with an upstream fails in a way
// that is neither a rejection nor a connectivity problem.
type SyncError struct {
	Cause error
}

// Error returns the error message.
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync error: %s", e.Cause)
}

// Unwrap returns the cause.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Status returns the error status.
func (e *SyncError) Status() StatusCode {
	return ErrCodeInternal
}

// MaterializerHashMismatchError signals that a materializer produced
// different statements for the same event on replay than on its first
// application, i.e. the materializer is not pure.
type MaterializerHashMismatchError struct {
	EventName string
	Seq       eventseq.SeqNum
	Expected  uint64
	Actual    uint64
}

// Error returns the error message.
func (e *MaterializerHashMismatchError) Error() string {
	return fmt.Sprintf(
		"materializer hash mismatch for %s at %s: expected %x, got %x",
		e.EventName, e.Seq, e.Expected, e.Actual,
	)
}

// Status returns the error status.
func (e *MaterializerHashMismatchError) Status() StatusCode {
	return ErrCodeInternal
}

// InvalidPushReason is the reason of an InvalidPushError.
type InvalidPushReason interface {
	fmt.Stringer
	isInvalidPushReason()
}

// LeaderAhead means the upstream has already advanced past the pushed batch.
// The pusher is expected to rebase its pending events and retry with numbers
// at or after MinimumExpectedID.
type LeaderAhead struct {
	MinimumExpectedID eventseq.SeqNum
	ProvidedID        eventseq.SeqNum
}

func (LeaderAhead) isInvalidPushReason() {}

// String returns the description of the reason.
func (r LeaderAhead) String() string {
	return fmt.Sprintf("leader ahead: minimum expected %s, provided %s", r.MinimumExpectedID, r.ProvidedID)
}

// UnexpectedReason means the push failed because of a defect.
type UnexpectedReason struct {
	Cause error
}

func (UnexpectedReason) isInvalidPushReason() {}

// String returns the description of the reason.
func (r UnexpectedReason) String() string {
	return fmt.Sprintf("unexpected: %s", r.Cause)
}

// InvalidPushError is returned synchronously to a pusher whose batch was
// rejected.
type InvalidPushError struct {
	Reason InvalidPushReason
}

// NewLeaderAheadError creates an InvalidPushError with a LeaderAhead reason.
func NewLeaderAheadError(minimumExpected, provided eventseq.SeqNum) *InvalidPushError {
	return &InvalidPushError{Reason: LeaderAhead{
		MinimumExpectedID: minimumExpected,
		ProvidedID:        provided,
	}}
}

// Error returns the error message.
func (e *InvalidPushError) Error() string {
	return fmt.Sprintf("invalid push: %s", e.Reason)
}

// Unwrap returns the cause of an unexpected reason.
func (e *InvalidPushError) Unwrap() error {
	if r, ok := e.Reason.(UnexpectedReason); ok {
		return r.Cause
	}
	return nil
}

// Status returns the error status.
func (e *InvalidPushError) Status() StatusCode {
	if _, ok := e.Reason.(LeaderAhead); ok {
		return ErrCodeFailedPrecondition
	}
	return ErrCodeInternal
}

// LeaderAheadOf returns the LeaderAhead reason of the given error, if any.
func LeaderAheadOf(err error) (LeaderAhead, bool) {
	var pushErr *InvalidPushError
	if !errors.As(err, &pushErr) {
		return LeaderAhead{}, false
	}
	reason, ok := pushErr.Reason.(LeaderAhead)
	return reason, ok
}

// InvalidPullError is returned when a pull cannot be served, e.g. for a
// cursor the upstream does not know.
type InvalidPullError struct {
	Cause error
}

// Error returns the error message.
func (e *InvalidPullError) Error() string {
	return fmt.Sprintf("invalid pull: %s", e.Cause)
}

// Unwrap returns the cause.
func (e *InvalidPullError) Unwrap() error {
	return e.Cause
}

// Status returns the error status.
func (e *InvalidPullError) Status() StatusCode {
	return ErrCodeInvalidArgument
}

// IsOfflineError is returned when an operation needs the upstream while it is
// not reachable.
type IsOfflineError struct{}

// Error returns the error message.
func (e *IsOfflineError) Error() string {
	return "upstream is offline"
}

// Status returns the error status.
func (e *IsOfflineError) Status() StatusCode {
	return ErrCodeUnavailable
}

// SqliteError is raised by the SQLite storage layers.
type SqliteError struct {
	Query string
	Code  int
	Cause error
}

// Error returns the error message.
func (e *SqliteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("sqlite %q (code %d): %s", e.Query, e.Code, e.Cause)
	}
	return fmt.Sprintf("sqlite %q: %s", e.Query, e.Cause)
}

// Unwrap returns the cause.
func (e *SqliteError) Unwrap() error {
	return e.Cause
}

// Status returns the error status.
func (e *SqliteError) Status() StatusCode {
	return ErrCodeInternal
}

// UnknownEventError is raised when the schema has no definition for an event
// and the unknown event policy says to fail.
type UnknownEventError struct {
	Name string
}

// Error returns the error message.
func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}

// Status returns the error status.
func (e *UnknownEventError) Status() StatusCode {
	return ErrCodeUnimplemented
}

// errorWithStatus is a plain message carrying a status.
type errorWithStatus struct {
	err    error
	status StatusCode
}

// Error returns the error message.
func (e errorWithStatus) Error() string {
	return e.err.Error()
}

// Status returns the error status.
func (e errorWithStatus) Status() StatusCode {
	return e.status
}

// Unwrap returns the underlying error.
func (e errorWithStatus) Unwrap() error {
	return e.err
}

func newErrorWithStatus(message string, status StatusCode) StatusError {
	return errorWithStatus{err: errors.New(message), status: status}
}

// NotFound creates a new "not found" error.
func NotFound(message string) StatusError {
	return newErrorWithStatus(message, ErrCodeNotFound)
}

// InvalidArgument creates a new "invalid argument" error.
func InvalidArgument(message string) StatusError {
	return newErrorWithStatus(message, ErrCodeInvalidArgument)
}

// FailedPrecond creates a new "failed precondition" error.
func FailedPrecond(message string) StatusError {
	return newErrorWithStatus(message, ErrCodeFailedPrecondition)
}

// Unauthenticated creates a new "unauthenticated" error.
func Unauthenticated(message string) StatusError {
	return newErrorWithStatus(message, ErrCodeUnauthenticated)
}

// Internal creates a new "internal" error.
func Internal(message string) StatusError {
	return newErrorWithStatus(message, ErrCodeInternal)
}

// Unavailable creates a new "unavailable" error.
func Unavailable(message string) StatusError {
	return newErrorWithStatus(message, ErrCodeUnavailable)
}

// New is errors.New of the standard library.
func New(message string) error {
	return errors.New(message)
}

// Is is errors.Is of the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As of the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
