// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	started_at TIMESTAMP,
	paused_at TIMESTAMP,
	completed_at TIMESTAMP,
	total INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	issues_found INTEGER NOT NULL DEFAULT 0,
	editions_updated INTEGER NOT NULL DEFAULT 0,
	current_library TEXT NOT NULL DEFAULT '',
	current_item TEXT NOT NULL DEFAULT '',
	checkpoint TEXT,
	triggered_by TEXT NOT NULL DEFAULT 'manual',
	config_snapshot TEXT,
	fail_reason TEXT
);

CREATE TABLE IF NOT EXISTS scan_events (
	id TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	ts TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL,
	item_key TEXT NOT NULL,
	item_guid TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	year INTEGER,
	media_kind TEXT NOT NULL,
	defect TEXT NOT NULL,
	status TEXT NOT NULL,
	library TEXT NOT NULL DEFAULT '',
	external_ids TEXT NOT NULL DEFAULT '[]',
	details TEXT,
	created_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS suggestions (
	id TEXT PRIMARY KEY,
	issue_id TEXT NOT NULL,
	source TEXT NOT NULL,
	artwork_kind TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	score INTEGER NOT NULL DEFAULT 0,
	set_name TEXT NOT NULL DEFAULT '',
	creator TEXT NOT NULL DEFAULT '',
	is_selected BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS edition_backups (
	id TEXT PRIMARY KEY,
	item_key TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	original_edition TEXT NOT NULL DEFAULT '',
	new_edition TEXT NOT NULL DEFAULT '',
	backed_up_at TIMESTAMP NOT NULL,
	restored_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS edition_config (
	id INTEGER PRIMARY KEY DEFAULT 1,
	enabled_modules TEXT NOT NULL DEFAULT '[]',
	module_order TEXT NOT NULL DEFAULT '[]',
	settings TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT true,
	cron_expression TEXT NOT NULL,
	scan_kind TEXT NOT NULL,
	config_snapshot TEXT,
	auto_commit BOOLEAN NOT NULL DEFAULT false,
	auto_commit_options TEXT,
	last_run_at TIMESTAMP,
	next_run_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS config_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT '',
	encrypted BOOLEAN NOT NULL DEFAULT false
);
`

func (db *DB) createTables() error {
	_, err := db.conn.Exec(schemaSQL)
	return err
}
