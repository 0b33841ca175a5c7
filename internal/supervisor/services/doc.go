// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package services adapts long-running components to suture.Service.
//
// Each adapter blocks in Serve until its context is cancelled, stops the
// wrapped component, and returns ctx.Err(). Components with their own
// loops (HTTP server, queue router, websocket hub) run inside Serve;
// components with Start/Stop lifecycles (retention sweeper) are started
// and stopped around the wait.
package services
