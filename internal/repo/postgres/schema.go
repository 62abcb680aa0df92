package postgres

import (
	"context"
	"fmt"
)

// Timestamps are stored as text in the canonical fixed format: lexical
// order matches chronological order, and legacy rows with values that
// no longer parse stay readable.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	pk          TEXT NOT NULL,
	sk          TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT '',
	duration    BIGINT NOT NULL DEFAULT 0,
	attrs       JSONB NOT NULL DEFAULT '{}',
	result      JSONB,
	PRIMARY KEY (pk, sk)
);
CREATE INDEX IF NOT EXISTS records_sk_created_at_idx
	ON records (sk, created_at DESC);
CREATE INDEX IF NOT EXISTS records_entity_type_idx
	ON records (entity_type);

CREATE TABLE IF NOT EXISTS audit_events (
	event_id         BIGSERIAL PRIMARY KEY,
	occurred_at      TIMESTAMPTZ NOT NULL,
	actor            TEXT NOT NULL,
	action           TEXT NOT NULL,
	resource_type    TEXT NOT NULL,
	resource_id      TEXT NOT NULL,
	request_id       TEXT,
	ip               TEXT,
	user_agent       TEXT,
	payload          JSONB NOT NULL DEFAULT '{}',
	integrity_sha256 TEXT NOT NULL
);
`

func EnsureSchema(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
