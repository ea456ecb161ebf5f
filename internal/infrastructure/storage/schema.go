package storage

// Timestamps are stored as BIGINT unix nanoseconds (UTC) so both dialects order
// and compare them identically.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		industry TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		auto_rerun_days INTEGER NOT NULL DEFAULT 0,
		profile TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_settings (
		project_id TEXT PRIMARY KEY,
		ai_provider TEXT NOT NULL DEFAULT '',
		ai_enabled INTEGER NOT NULL DEFAULT 0,
		search_provider TEXT NOT NULL DEFAULT '',
		freshness_days INTEGER NOT NULL DEFAULT 0,
		vertical TEXT NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		status TEXT NOT NULL,
		last_note TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		started_at BIGINT,
		completed_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS runs_project_idx ON runs (project_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS run_logs (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS run_logs_run_idx ON run_logs (run_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS run_logs_created_idx ON run_logs (created_at)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		snippet TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL DEFAULT '',
		published_at BIGINT,
		fetched_at BIGINT,
		status TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		stale_note TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		UNIQUE (run_id, url)
	)`,
	`CREATE TABLE IF NOT EXISTS competitors (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		website TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		UNIQUE (run_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS capabilities (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		competitor_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (run_id, category, normalized)
	)`,
	`CREATE TABLE IF NOT EXISTS feature_definitions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		normalized TEXT NOT NULL UNIQUE,
		aliases TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS features (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		competitor_id TEXT NOT NULL DEFAULT '',
		feature_definition_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		normalized TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		origin TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (run_id, competitor_id, normalized)
	)`,
	`CREATE INDEX IF NOT EXISTS features_normalized_idx ON features (normalized)`,
	`CREATE TABLE IF NOT EXISTS pricing_points (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		competitor_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		plan TEXT NOT NULL DEFAULT '',
		amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		period TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS compliance_items (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		competitor_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		framework TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS integrations (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		competitor_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		citations TEXT NOT NULL DEFAULT '[]',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT PRIMARY KEY,
		executive_summary TEXT NOT NULL DEFAULT '',
		markdown TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS source_changes (
		id TEXT PRIMARY KEY,
		previous_run_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		added INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		modified INTEGER NOT NULL,
		detail TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credits (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL
	)`,
}
