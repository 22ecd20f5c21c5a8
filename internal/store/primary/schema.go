package primary

import (
	"context"
	"fmt"
)

// schemaSQL creates the processing_jobs table. Item lists are JSONB
// ({"version":1,"items":[...]}); NULL means never set.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id                     BIGSERIAL PRIMARY KEY,
	user_id                BIGINT      NOT NULL,
	status                 TEXT        NOT NULL CHECK (status IN ('UPLOADING','PROCESSING','READY_FOR_REVIEW','COMPLETED','FAILED')),
	current_step           TEXT        NOT NULL DEFAULT '',
	progress_percentage    INTEGER     NOT NULL DEFAULT 0 CHECK (progress_percentage BETWEEN 0 AND 100),
	error_message          TEXT,
	confirmed              BOOLEAN     NOT NULL DEFAULT FALSE,
	image_type             TEXT        NOT NULL,
	original_filename      TEXT        NOT NULL DEFAULT '',
	original_image_ref     TEXT,
	background_removed_ref TEXT,
	segmented_ref          TEXT,
	inpainted_ref          TEXT,
	selected_image_ref     TEXT,
	suggested_category     TEXT,
	classification_label   TEXT,
	area_pixels            BIGINT,
	segmented_items        JSONB,
	expanded_items         JSONB,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS processing_jobs_user_id_idx ON processing_jobs (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS processing_jobs_status_idx ON processing_jobs (status);
`

// EnsureSchema creates the tables this store needs if they are missing.
func (s *StoreImpl) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply processing_jobs schema: %w", err)
	}
	return nil
}
