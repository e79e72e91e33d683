// internal/membership/postgres.go
package membership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists members and credentials.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a member store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get retrieves a member by ID, or (nil, nil) if absent.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.getBy(ctx, `SELECT id, name, email, role FROM members WHERE id = $1`, id)
}

// GetByEmail retrieves a member by email, or (nil, nil) if absent.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Member, error) {
	return s.getBy(ctx, `SELECT id, name, email, role FROM members WHERE email = $1`, email)
}

func (s *PostgresStore) getBy(ctx context.Context, query string, arg interface{}) (*Member, error) {
	member := &Member{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&member.ID, &member.Name, &member.Email, &member.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return member, nil
}

// Save stores a member and, when given, its credential in one transaction.
func (s *PostgresStore) Save(ctx context.Context, member *Member, credential *Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	memberQuery := `
		INSERT INTO members (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    role = EXCLUDED.role
	`
	if _, err := tx.ExecContext(ctx, memberQuery, member.ID, member.Name, member.Email, member.Role); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}

	if credential != nil {
		credQuery := `
			INSERT INTO credentials (member_id, password_hash, salt)
			VALUES ($1, $2, $3)
			ON CONFLICT (member_id) DO UPDATE
			SET password_hash = EXCLUDED.password_hash,
			    salt = EXCLUDED.salt
		`
		if _, err := tx.ExecContext(ctx, credQuery, credential.MemberID, credential.PasswordHash, credential.Salt); err != nil {
			return fmt.Errorf("upsert credential: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Credential retrieves a member's credential, or (nil, nil) if absent.
func (s *PostgresStore) Credential(ctx context.Context, memberID uuid.UUID) (*Credential, error) {
	credential := &Credential{}
	err := s.db.QueryRowContext(ctx,
		`SELECT member_id, password_hash, salt FROM credentials WHERE member_id = $1`,
		memberID,
	).Scan(&credential.MemberID, &credential.PasswordHash, &credential.Salt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query credential: %w", err)
	}
	return credential, nil
}
