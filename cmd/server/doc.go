// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package main is the entry point for the Cartographus artwork-and-edition
curator daemon.

Cartographus scans a Plex library for metadata defects — unmatched items,
missing posters and backgrounds, and low-resolution placeholder artwork —
and for movies whose edition title (the "Extended Edition" / "Director's
Cut" suffix after the year) is stale. It ranks replacement artwork from
Fanart.tv, TMDB, TheTVDB, and Mediux, lets an operator review and accept
suggestions, and can auto-apply above a configured confidence score. A cron
scheduler drives periodic scans with an optional auto-commit pass.

# Application Architecture

The server runs one supervised process with a Suture v4 tree:

	RootSupervisor ("cartographus")
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router, control API)

The Scan Engine, Auto-Apply Engine, and Scheduler are process-wide
singletons constructed directly in main and referenced by the API layer;
they are not themselves suture services; the scheduler's per-schedule jobs
run on their own background goroutines, cancelled via context on shutdown.

Component initialization order:

 1. Configuration: koanf, environment variables over defaults
 2. Logging: zerolog, JSON or console output
 3. Database: DuckDB, tables created on first open
 4. Config Store: encrypted media-server and provider credentials
 5. Media Server Client, Provider Aggregator, Edition Engine
 6. Scan Engine, Auto-Apply Engine, Scheduler
 7. Control API router
 8. Supervisor Tree, HTTP Server

# Configuration

Configuration loads via koanf with environment variables layered over
built-in defaults. Core variables:

	SERVER_PORT=8080
	SERVER_HOST=0.0.0.0
	DATABASE_PATH=./data/cartographus.duckdb
	SECURITY_SECRET_KEY=<32+ chars>        # encrypts stored credentials
	SECURITY_CORS_ORIGINS=http://localhost:5173
	LOG_LEVEL=info
	LOG_FORMAT=json

Media-server connection details and provider API keys (Fanart, TMDB,
TheTVDB, Mediux) are not environment variables: they are written to the
encrypted Config Store through the control API after the daemon is
running, so they can be rotated without a restart.

# Signal Handling

SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
accepting new connections, in-flight requests get up to the configured
shutdown timeout to finish, and every registered scheduler job is
cancelled.

# See Also

  - internal/config: static process configuration
  - internal/configstore: encrypted runtime credential storage
  - internal/scan: scan lifecycle engine
  - internal/autoapply: auto-apply engine
  - internal/scheduler: cron-driven triggers
  - internal/api: control API
  - internal/supervisor: process supervision
*/
package main
