// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

/*
Package supervisor runs the long-lived services of the server under a
suture v4 tree:

	RootSupervisor ("hotspot")
	├── data-layer
	│   ├── retention-sweeper
	│   └── store-gc
	├── messaging-layer
	│   ├── websocket-hub
	│   └── queue-router
	└── api-layer
	    └── http-server

A crash in one layer is restarted inside that layer without touching the
others. Supervisor events are logged through sutureslog on the zerolog
backed slog.Logger from the logging package.

The store and the queue transport are opened before the tree starts and
closed after it returns, so no service owns them.
*/
package supervisor
