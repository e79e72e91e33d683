// internal/circulation/postgres.go
package circulation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists loans in the loans table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a loan store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get retrieves a loan by its ID, or (nil, nil) if it does not exist.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Loan, error) {
	query := `
		SELECT id, item_id, member_id, loan_date, return_date, returned
		FROM loans
		WHERE id = $1
	`
	loan, err := scanLoan(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query loan: %w", err)
	}
	return loan, nil
}

// List returns all loans ordered by loan date.
func (s *PostgresStore) List(ctx context.Context) ([]*Loan, error) {
	query := `
		SELECT id, item_id, member_id, loan_date, return_date, returned
		FROM loans
		ORDER BY loan_date, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}

	return loans, nil
}

// Save inserts or replaces a loan record.
func (s *PostgresStore) Save(ctx context.Context, loan *Loan) error {
	query := `
		INSERT INTO loans (id, item_id, member_id, loan_date, return_date, returned)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET item_id = EXCLUDED.item_id,
		    member_id = EXCLUDED.member_id,
		    return_date = EXCLUDED.return_date,
		    returned = EXCLUDED.returned
	`
	var returnDate sql.NullTime
	if loan.ReturnDate != nil {
		returnDate = sql.NullTime{Time: *loan.ReturnDate, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query, loan.ID, loan.ItemID, loan.MemberID, loan.LoanDate, returnDate, loan.Returned)
	if err != nil {
		return fmt.Errorf("upsert loan: %w", err)
	}
	return nil
}

// Delete removes a loan record.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	return nil
}

// FindActiveByItem returns the active loan referencing the item, or
// (nil, nil) when none exists.
func (s *PostgresStore) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*Loan, error) {
	query := `
		SELECT id, item_id, member_id, loan_date, return_date, returned
		FROM loans
		WHERE item_id = $1 AND returned = FALSE
		LIMIT 1
	`
	loan, err := scanLoan(s.db.QueryRowContext(ctx, query, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active loan: %w", err)
	}
	return loan, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	loan := &Loan{}
	var returnDate sql.NullTime

	err := row.Scan(&loan.ID, &loan.ItemID, &loan.MemberID, &loan.LoanDate, &returnDate, &loan.Returned)
	if err != nil {
		return nil, err
	}

	if returnDate.Valid {
		t := returnDate.Time
		loan.ReturnDate = &t
	}
	return loan, nil
}
