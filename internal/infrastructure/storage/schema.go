package storage

// schema is portable across SQLite and Postgres: text keys, unix-millisecond timestamps.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS candidate_items (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		source_name TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		published_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		generated_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_generated_at ON batches (generated_at)`,
	`CREATE TABLE IF NOT EXISTS batch_items (
		batch_id TEXT NOT NULL REFERENCES batches (id),
		item_id TEXT NOT NULL REFERENCES candidate_items (id),
		ordinal INTEGER NOT NULL,
		PRIMARY KEY (batch_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		batch_id TEXT NOT NULL REFERENCES batches (id),
		item_id TEXT NOT NULL REFERENCES candidate_items (id),
		topic TEXT NOT NULL DEFAULT '',
		ordinal INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		decided_at BIGINT,
		UNIQUE (user_id, batch_id, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_user_status ON assignments (user_id, status)`,
	`CREATE TABLE IF NOT EXISTS interest_scores (
		user_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		score INTEGER NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, topic)
	)`,
	`CREATE TABLE IF NOT EXISTS onboarding_completions (
		user_id TEXT PRIMARY KEY,
		completed_at BIGINT NOT NULL
	)`,
}
