// internal/catalog/postgres.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists items in the items table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an item store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get retrieves an item by its ID, or (nil, nil) if it does not exist.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	query := `
		SELECT id, isbn, title, author, published_year, total_copies, available
		FROM items
		WHERE id = $1
	`
	item := &Item{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.ISBN,
		&item.Title,
		&item.Author,
		&item.PublishedYear,
		&item.TotalCopies,
		&item.Available,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return item, nil
}

// List returns all items ordered by title.
func (s *PostgresStore) List(ctx context.Context) ([]*Item, error) {
	query := `
		SELECT id, isbn, title, author, published_year, total_copies, available
		FROM items
		ORDER BY title, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		if err := rows.Scan(&item.ID, &item.ISBN, &item.Title, &item.Author, &item.PublishedYear, &item.TotalCopies, &item.Available); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// Save inserts or replaces an item.
func (s *PostgresStore) Save(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO items (id, isbn, title, author, published_year, total_copies, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET isbn = EXCLUDED.isbn,
		    title = EXCLUDED.title,
		    author = EXCLUDED.author,
		    published_year = EXCLUDED.published_year,
		    total_copies = EXCLUDED.total_copies,
		    available = EXCLUDED.available
	`
	_, err := s.db.ExecContext(ctx, query, item.ID, item.ISBN, item.Title, item.Author, item.PublishedYear, item.TotalCopies, item.Available)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// Delete removes an item.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
