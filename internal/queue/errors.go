// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package queue

import "errors"

var (
	// ErrPublisherClosed is returned by Enqueue after Close.
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrCircuitOpen is returned while the breaker rejects publishes.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnknownBackend is returned for a backend other than nats or memory.
	ErrUnknownBackend = errors.New("unknown queue backend")
)

// permanentError marks a handler failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the router skips retries and sends the message
// straight to the poison topic.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
