// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

/*
Package api exposes the pipeline over HTTP using the chi router.

Routes:

	POST /api/v1/cases                      ingest one case event
	GET  /api/v1/alerts/{id}                cluster alert document
	GET  /api/v1/alerts/stream              websocket stream of alert verdicts
	GET  /api/v1/rollups/{condition}/{cell} rollup document (debug aid)
	GET  /api/v1/config/runtime             current runtime parameters
	PUT  /api/v1/config/runtime             store runtime overrides
	GET  /api/v1/health/live                liveness
	GET  /api/v1/health/ready               store and queue readiness
	GET  /metrics                           Prometheus exposition

The ingest endpoint answers with a flat body:

	201 {"ok":true,"event_id":"e1","h3":"88283082a3fffff","density_T1":3,"alert_triggered":false}
	202 {"ok":true,"status":"duplicate_skipped","event_id":"e1"}
	400 {"ok":false,"status":"error","message":"lat is required","errors":[...]}
	500 {"ok":false,"status":"error","message":"internal error"}

Every other endpoint wraps its payload in models.APIResponse.
*/
package api
