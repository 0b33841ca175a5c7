// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

/*
Package websocket streams cluster alert verdicts to connected clients.

The Hub owns the client set and fans out messages; each Client runs a read
pump and a write pump over a gorilla/websocket connection. The clustering
worker reports terminal verdicts through Hub.AlertUpdated, which is the
worker.Notifier implementation used by the server.

Messages are JSON objects:

	{"type":"alert_verdict","data":{"cluster_id":"...","state":"confirmed",...}}

Clients may send {"type":"ping"} and receive {"type":"pong"}. A client
whose send buffer is full is dropped rather than blocking the broadcast.

The hub is run under suture supervision with RunWithContext; on shutdown
all clients are closed.
*/
package websocket
