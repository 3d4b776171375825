// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/acuity/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/acuity/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage sessions in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// pool's lifecycle belongs to the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Get retrieves a session by ID, including its message history.
func (s *Store) Get(ctx context.Context, id string) (*triage.Session, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		sess        triage.Session
		status      string
		patientJSON []byte
		resultJSON  []byte
		sourcesJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, patient, status, result, sources, created_at, last_updated_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &patientJSON, &status, &resultJSON, &sourcesJSON, &sess.CreatedAt, &sess.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, triage.ErrSessionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = triage.Status(status)
	if err := json.Unmarshal(patientJSON, &sess.Patient); err != nil {
		return nil, fmt.Errorf("unmarshal patient: %w", err)
	}
	if len(resultJSON) > 0 {
		sess.Result = &triage.Result{}
		if err := json.Unmarshal(resultJSON, sess.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &sess.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
	}

	if err := s.loadMessages(ctx, &sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &sess, nil
}

// Put inserts or updates a session and its messages in one transaction.
// Message rows are upserted by (session_id, seq): existing turns are
// rewritten in place, which also covers the per-turn system prompt refresh.
func (s *Store) Put(ctx context.Context, sess *triage.Session) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if err := s.upsertSession(ctx, tx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := s.upsertMessages(ctx, tx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a session and, via cascade, its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Delete", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) upsertSession(ctx context.Context, tx pgx.Tx, sess *triage.Session) error {
	patientJSON, err := json.Marshal(sess.Patient)
	if err != nil {
		return fmt.Errorf("marshal patient: %w", err)
	}

	var resultJSON []byte
	if sess.Result != nil {
		if resultJSON, err = json.Marshal(sess.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}
	var sourcesJSON []byte
	if len(sess.Sources) > 0 {
		if sourcesJSON, err = json.Marshal(sess.Sources); err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
	}

	query := `INSERT INTO sessions (id, patient, status, result, sources, created_at, last_updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (id) DO UPDATE SET
		patient         = EXCLUDED.patient,
		status          = EXCLUDED.status,
		result          = EXCLUDED.result,
		sources         = EXCLUDED.sources,
		last_updated_at = EXCLUDED.last_updated_at`

	_, err = tx.Exec(ctx, query,
		sess.ID, patientJSON, string(sess.Status), resultJSON, sourcesJSON,
		sess.CreatedAt, sess.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Store) upsertMessages(ctx context.Context, tx pgx.Tx, sess *triage.Session) error {
	for seq, m := range sess.Messages {
		_, err := tx.Exec(ctx,
			`INSERT INTO session_messages (session_id, seq, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (session_id, seq) DO UPDATE SET content = EXCLUDED.content`,
			sess.ID, seq, string(m.Role), m.Content, m.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("upsert message seq %d: %w", seq, err)
		}
	}
	return nil
}

func (s *Store) loadMessages(ctx context.Context, sess *triage.Session) error {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at FROM session_messages
		 WHERE session_id = $1 ORDER BY seq`, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			role      string
			content   string
			createdAt time.Time
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		sess.Messages = append(sess.Messages, triage.Message{
			Role:      triage.Role(role),
			Content:   content,
			Timestamp: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate messages: %w", err)
	}
	return nil
}
