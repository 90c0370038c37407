package storage

// schema is applied with CREATE TABLE IF NOT EXISTS on every startup,
// mirroring the original SQLAlchemy models' table set (spec §6's
// persisted-state list). sqlite stores the 512-dim embedding vectors as
// packed little-endian float32 blobs; comparison happens in
// internal/matching, in process, rather than via a vector extension.
const schema = `
CREATE TABLE IF NOT EXISTS contributors (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	tier TEXT NOT NULL DEFAULT 'free',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	id TEXT PRIMARY KEY,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	vector BLOB NOT NULL,
	is_primary INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_contributor ON embeddings(contributor_id);

CREATE TABLE IF NOT EXISTS known_accounts (
	id TEXT PRIMARY KEY,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	platform TEXT NOT NULL DEFAULT '',
	handle TEXT NOT NULL DEFAULT '',
	domain TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_known_accounts_contributor ON known_accounts(contributor_id);

CREATE TABLE IF NOT EXISTS discovered_images (
	id TEXT PRIMARY KEY,
	source_url TEXT NOT NULL,
	page_url TEXT NOT NULL DEFAULT '',
	page_title TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	fail_reason TEXT NOT NULL DEFAULT '',
	discovered_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_discovered_images_status ON discovered_images(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_discovered_images_source_url ON discovered_images(source_url);

CREATE TABLE IF NOT EXISTS discovered_face_embeddings (
	id TEXT PRIMARY KEY,
	discovered_image_id TEXT NOT NULL REFERENCES discovered_images(id),
	vector BLOB NOT NULL,
	detection_score REAL NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_face_embeddings_image ON discovered_face_embeddings(discovered_image_id);

CREATE TABLE IF NOT EXISTS matches (
	id TEXT PRIMARY KEY,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	discovered_image_id TEXT NOT NULL REFERENCES discovered_images(id),
	embedding_id TEXT NOT NULL,
	face_embedding_id TEXT NOT NULL,
	similarity REAL NOT NULL,
	confidence_tier TEXT NOT NULL DEFAULT '',
	known_account INTEGER NOT NULL DEFAULT 0,
	ai_is_generated INTEGER,
	ai_score REAL,
	ai_generator TEXT,
	evidence_sha256 TEXT NOT NULL DEFAULT '',
	review_status TEXT NOT NULL DEFAULT 'new',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_matches_contributor ON matches(contributor_id);
CREATE INDEX IF NOT EXISTS idx_matches_review_status ON matches(review_status);

CREATE TABLE IF NOT EXISTS takedowns (
	id TEXT PRIMARY KEY,
	match_id TEXT NOT NULL REFERENCES matches(id),
	body TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'drafted',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	match_id TEXT NOT NULL REFERENCES matches(id),
	read_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_contributor ON notifications(contributor_id);

CREATE TABLE IF NOT EXISTS scan_jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	interval_hours REAL NOT NULL DEFAULT 0,
	last_run_at TIMESTAMP,
	lease_state TEXT NOT NULL DEFAULT 'idle',
	lease_owner TEXT NOT NULL DEFAULT '',
	heartbeat_at TIMESTAMP,
	run_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scan_jobs_kind_state ON scan_jobs(kind, lease_state);

CREATE TABLE IF NOT EXISTS platform_crawl_schedule (
	platform TEXT PRIMARY KEY,
	interval_hours REAL NOT NULL DEFAULT 24,
	cursor TEXT NOT NULL DEFAULT '',
	search_cursors TEXT NOT NULL DEFAULT '{}',
	model_cursors TEXT NOT NULL DEFAULT '{}',
	tags_total INTEGER NOT NULL DEFAULT 0,
	tags_exhausted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ml_feedback_signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_type TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	actor TEXT NOT NULL DEFAULT 'system',
	emitted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_signals_type ON ml_feedback_signals(signal_type);

CREATE TABLE IF NOT EXISTS ml_model_state (
	model_name TEXT NOT NULL,
	version INTEGER NOT NULL,
	parameters TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (model_name, version)
);
`
