// internal/journal/postgres.go
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresJournal stores lending events in the loan_events table with a
// per-loan sequence number.
type PostgresJournal struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgresJournal creates a journal backed by the given database.
func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{
		db:     db,
		tracer: otel.Tracer("lendledger/journal"),
	}
}

// Append atomically adds one event to the loan's stream. The unique
// (loan_id, sequence) constraint turns a racing append into
// ErrSequenceConflict instead of a duplicate slot.
func (j *PostgresJournal) Append(ctx context.Context, loanID uuid.UUID, eventType string, data json.RawMessage) error {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("loan.id", loanID.String()),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lastSequence int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0)
		FROM loan_events
		WHERE loan_id = $1
	`, loanID).Scan(&lastSequence)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query last sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loan_events (loan_id, event_type, event_data, sequence, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, loanID, eventType, data, lastSequence+1, time.Now().UTC())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSequenceConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Int("event.sequence", lastSequence+1))
	return nil
}

// ByLoan returns the loan's events in append order.
func (j *PostgresJournal) ByLoan(ctx context.Context, loanID uuid.UUID) ([]Entry, error) {
	ctx, span := j.tracer.Start(ctx, "journal.by_loan",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, loan_id, event_type, event_data, sequence, created_at
		FROM loan_events
		WHERE loan_id = $1
		ORDER BY sequence ASC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.LoanID, &entry.EventType, &entry.EventData, &entry.Sequence, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(entries)))
	return entries, nil
}
