package processdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres. Queries are stored as JSONB.
type PGRepo struct {
	DB *sql.DB
}

// GetByID fetches a process record by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (ProcessData, error) {
	if strings.TrimSpace(id) == "" {
		return ProcessData{}, ErrMissingID
	}
	const query = `
SELECT id, input_bucket, input_key, output_bucket, textract_job_id, textract_output_key, task_token,
       queries, version, created_at, updated_at
FROM process_data
WHERE id = $1
LIMIT 1`

	var rec ProcessData
	var inputBucket, inputKey, outputBucket sql.NullString
	var jobID, outputKey, taskToken sql.NullString
	var queries []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&inputBucket,
		&inputKey,
		&outputBucket,
		&jobID,
		&outputKey,
		&taskToken,
		&queries,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProcessData{}, ErrNotFound
		}
		return ProcessData{}, err
	}
	rec.InputBucket = inputBucket.String
	rec.InputKey = inputKey.String
	rec.OutputBucket = outputBucket.String
	rec.TextractJobID = jobID.String
	rec.TextractOutputKey = outputKey.String
	rec.TaskToken = taskToken.String

	if len(queries) > 0 {
		if err := json.Unmarshal(queries, &rec.Queries); err != nil {
			return ProcessData{}, fmt.Errorf("decode queries id=%s: %w", id, err)
		}
	}
	return rec, nil
}

// Save inserts a new record (Version 0) or updates an existing one whose
// stored version matches.
func (r *PGRepo) Save(ctx context.Context, rec ProcessData) (ProcessData, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return ProcessData{}, ErrMissingID
	}
	queries := rec.Queries
	if queries == nil {
		queries = []DocumentQuery{}
	}
	payload, err := json.Marshal(queries)
	if err != nil {
		return ProcessData{}, fmt.Errorf("encode queries id=%s: %w", rec.ID, err)
	}

	now := time.Now().UTC()
	if rec.Version == 0 {
		return r.insert(ctx, rec, payload, now)
	}

	const update = `
UPDATE process_data
SET input_bucket = $1,
    input_key = $2,
    output_bucket = $3,
    textract_job_id = $4,
    textract_output_key = $5,
    task_token = $6,
    queries = $7,
    version = version + 1,
    updated_at = $8
WHERE id = $9 AND version = $10`
	res, err := r.DB.ExecContext(ctx, update,
		nullString(rec.InputBucket),
		nullString(rec.InputKey),
		nullString(rec.OutputBucket),
		nullString(rec.TextractJobID),
		nullString(rec.TextractOutputKey),
		nullString(rec.TaskToken),
		payload,
		now,
		rec.ID,
		rec.Version,
	)
	if err != nil {
		return ProcessData{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ProcessData{}, fmt.Errorf("rows affected id=%s: %w", rec.ID, err)
	}
	if affected == 0 {
		return ProcessData{}, ErrConflict
	}
	rec.Version++
	rec.UpdatedAt = now
	return rec, nil
}

func (r *PGRepo) insert(ctx context.Context, rec ProcessData, payload []byte, now time.Time) (ProcessData, error) {
	const insert = `
INSERT INTO process_data (
    id, input_bucket, input_key, output_bucket, textract_job_id, textract_output_key, task_token,
    queries, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)
ON CONFLICT (id) DO NOTHING`
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	res, err := r.DB.ExecContext(ctx, insert,
		rec.ID,
		nullString(rec.InputBucket),
		nullString(rec.InputKey),
		nullString(rec.OutputBucket),
		nullString(rec.TextractJobID),
		nullString(rec.TextractOutputKey),
		nullString(rec.TaskToken),
		payload,
		rec.CreatedAt,
	)
	if err != nil {
		return ProcessData{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ProcessData{}, fmt.Errorf("rows affected id=%s: %w", rec.ID, err)
	}
	if affected == 0 {
		return ProcessData{}, ErrConflict
	}
	rec.Version = 1
	rec.UpdatedAt = rec.CreatedAt
	return rec, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
