// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package pipeline

import "errors"

// ErrInvalidInput wraps request validation failures. No store access
// happens before it is returned.
var ErrInvalidInput = errors.New("invalid input")
