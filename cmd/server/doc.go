// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

/*
Command server runs the Hotspot outbreak-detection pipeline.

	server serve     run the HTTP API, clustering worker and retention sweeper
	server sweep     run one retention sweep and exit
	server version   print build information

Configuration is read from defaults, an optional YAML file (--config or
CONFIG_PATH) and environment variables; see internal/config.
*/
package main
