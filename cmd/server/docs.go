// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package main provides the Cartographus artwork-and-edition curator API.
//
// @title Cartographus Curator API
// @version 1.0
// @description Artwork and edition curation for a Plex media library: scans
// @description for missing/placeholder posters and backgrounds, stale
// @description edition titles, and unmatched items; ranks replacement
// @description artwork from Fanart.tv, TMDB, TheTVDB, and Mediux; and
// @description applies operator-accepted suggestions back to the library.
// @description
// @description ## Rate Limiting
// @description
// @description Write endpoints (scan/schedule/autoapply mutation) and the
// @description streaming endpoints (SSE, WebSocket) are rate limited
// @description separately from health checks; see X-RateLimit-* headers.
// @description
// @description ## Error Responses
// @description
// @description All error responses share one envelope:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {"code": "ERROR_CODE", "message": "...", "details": {}}
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/cartographus/issues
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
//
// @tag.name Scans
// @tag.description Scan lifecycle: start, pause, resume, cancel, inspect
//
// @tag.name Issues
// @tag.description Reviewing detected defects and their artwork suggestions
//
// @tag.name AutoApply
// @tag.description Auto-applying accepted suggestions above a confidence threshold
//
// @tag.name Schedules
// @tag.description Cron-driven recurring scans
//
// @tag.name Realtime
// @tag.description Live scan/auto-apply progress over SSE and WebSocket
package main
