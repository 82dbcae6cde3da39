package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoBackup is returned when a rollback is requested for a document that has
// no stored pre-optimization body.
var ErrNoBackup = errors.New("no backup available")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const documentColumns = `id, title, content, original_content, link_count, optimized_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(&item.ID, &item.Title, &item.Content, &item.OriginalContent, &item.LinkCount, &item.OptimizedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id=$1
	`, documentID)
	item, err := scanDocument(row)
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, link_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, item.Content, item.LinkCount)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const catalogColumns = `id, url, title, keywords, category, priority, is_active, page_exists, usage_count`

func scanCatalogEntry(row interface{ Scan(...any) error }) (LinkCatalogEntry, error) {
	var item LinkCatalogEntry
	err := row.Scan(&item.ID, &item.URL, &item.Title, &item.Keywords, &item.Category, &item.Priority, &item.IsActive, &item.PageExists, &item.UsageCount)
	return item, err
}

func (s *PostgresStore) ListCatalogEntries(ctx context.Context) ([]LinkCatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+catalogColumns+`
		FROM link_catalog
		ORDER BY priority DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	items := make([]LinkCatalogEntry, 0)
	for rows.Next() {
		item, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCatalogEntry(ctx context.Context, linkID string) (LinkCatalogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+catalogColumns+`
		FROM link_catalog
		WHERE id=$1
	`, linkID)
	item, err := scanCatalogEntry(row)
	if err != nil {
		return LinkCatalogEntry{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertCatalogEntry(ctx context.Context, item LinkCatalogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO link_catalog (id, url, title, keywords, category, priority, is_active, page_exists)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.URL, item.Title, item.Keywords, item.Category, item.Priority, item.IsActive, item.PageExists)
	if err != nil {
		return fmt.Errorf("insert catalog entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPageExists(ctx context.Context, linkID string, exists bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE link_catalog SET page_exists=$2 WHERE id=$1`, linkID, exists)
	if err != nil {
		return fmt.Errorf("set page_exists: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set page_exists affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListLinkUsages(ctx context.Context, documentID string) ([]LinkUsage, error) {
	return s.listUsages(ctx, documentID, false)
}

func (s *PostgresStore) ListAutoLinkUsages(ctx context.Context, documentID string) ([]LinkUsage, error) {
	return s.listUsages(ctx, documentID, true)
}

func (s *PostgresStore) listUsages(ctx context.Context, documentID string, autoOnly bool) ([]LinkUsage, error) {
	query := `
		SELECT id, link_id, document_id, anchor_text, context_snippet, position, was_auto_inserted, created_at
		FROM link_usages
		WHERE document_id=$1
	`
	if autoOnly {
		query += ` AND was_auto_inserted`
	}
	query += ` ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list link usages: %w", err)
	}
	defer rows.Close()

	items := make([]LinkUsage, 0)
	for rows.Next() {
		var item LinkUsage
		if err := rows.Scan(&item.ID, &item.LinkID, &item.DocumentID, &item.AnchorText, &item.ContextSnippet, &item.Position, &item.WasAutoInserted, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link usage: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link usages: %w", err)
	}
	return items, nil
}

// ApplyOptimization persists a commit as one transaction: the rewritten body,
// the first-edit-wins backup, the usage audit rows, and the catalog counter
// increments. Either everything lands or nothing does.
func (s *PostgresStore) ApplyOptimization(ctx context.Context, documentID, newContent string, optimizedAt time.Time, usages []LinkUsage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET content=$2,
			original_content=COALESCE(original_content, content),
			link_count=link_count+$3,
			optimized_at=$4,
			updated_at=NOW()
		WHERE id=$1
	`, documentID, newContent, len(usages), optimizedAt)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	for _, usage := range usages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO link_usages (link_id, document_id, anchor_text, context_snippet, position, was_auto_inserted)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, usage.LinkID, documentID, usage.AnchorText, usage.ContextSnippet, usage.Position, usage.WasAutoInserted); err != nil {
			return fmt.Errorf("insert link usage: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE link_catalog SET usage_count=usage_count+1 WHERE id=$1
		`, usage.LinkID); err != nil {
			return fmt.Errorf("increment usage count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ApplyRollback restores the backed-up body and deletes all auto-inserted
// usage rows, decrementing catalog counters per deleted row. Returns
// ErrNoBackup when original_content is NULL.
func (s *PostgresStore) ApplyRollback(ctx context.Context, documentID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rollback tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var original *string
	err = tx.QueryRowContext(ctx, `
		SELECT original_content FROM documents WHERE id=$1 FOR UPDATE
	`, documentID).Scan(&original)
	if err != nil {
		return 0, err
	}
	if original == nil {
		return 0, ErrNoBackup
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET content=$2, original_content=NULL, optimized_at=NULL, link_count=0, updated_at=NOW()
		WHERE id=$1
	`, documentID, *original); err != nil {
		return 0, fmt.Errorf("restore document: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM link_usages
		WHERE document_id=$1 AND was_auto_inserted
		RETURNING link_id
	`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete auto usages: %w", err)
	}
	linkIDs, err := collectIDs(rows)
	if err != nil {
		return 0, err
	}

	for _, linkID := range linkIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE link_catalog SET usage_count=GREATEST(usage_count-1, 0) WHERE id=$1
		`, linkID); err != nil {
			return 0, fmt.Errorf("decrement usage count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rollback tx: %w", err)
	}
	return len(linkIDs), nil
}

// ApplyAutoRemoval persists a partial removal: the unwrapped body, the
// consumed usage rows, the link_count decrement, and the catalog counter
// decrements. original_content is deliberately left untouched.
func (s *PostgresStore) ApplyAutoRemoval(ctx context.Context, documentID, newContent string, usageIDs []int64, linkIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin removal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET content=$2, link_count=GREATEST(link_count-$3, 0), updated_at=NOW()
		WHERE id=$1
	`, documentID, newContent, len(usageIDs))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	for _, usageID := range usageIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM link_usages WHERE id=$1`, usageID); err != nil {
			return fmt.Errorf("delete link usage: %w", err)
		}
	}
	for _, linkID := range linkIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE link_catalog SET usage_count=GREATEST(usage_count-1, 0) WHERE id=$1
		`, linkID); err != nil {
			return fmt.Errorf("decrement usage count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit removal tx: %w", err)
	}
	return nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}
