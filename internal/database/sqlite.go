package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"capsule-go/internal/capsule"
	"capsule-go/internal/database/migrations"
	"capsule-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the capsule, attachment, and audit store
// contracts on a single SQLite database.
type SQLiteStore struct {
	db   *sqlx.DB
	path string
}

// NewSQLiteStore opens a SQLite store at the given path.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite connection pool.
// Exported for tools and tests that need a properly configured connection.
//
// Foreign keys are enabled through the DSN rather than a PRAGMA statement:
// a PRAGMA runs on a single pooled connection, while the DSN applies to
// every connection the pool opens, so attachment rows cascade with their
// capsule no matter which connection executes the delete (SQLite default
// is OFF for backward compatibility).
func OpenConnection(path string) (*sqlx.DB, error) {
	dsn := "file:" + path + "?_foreign_keys=on"

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each pooled connection to :memory: would otherwise be its own
		// empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	return db, nil
}

// capsuleRow is the capsules table shape. Recipients are stored as a JSON
// array in a TEXT column.
type capsuleRow struct {
	ID         string       `db:"id"`
	OwnerID    string       `db:"owner_id"`
	Title      string       `db:"title"`
	Message    string       `db:"message"`
	UnlockAt   time.Time    `db:"unlock_at"`
	Privacy    string       `db:"privacy"`
	Recipients string       `db:"recipients"`
	Status     string       `db:"status"`
	CreatedAt  time.Time    `db:"created_at"`
	RevealedAt sql.NullTime `db:"revealed_at"`
}

func (r *capsuleRow) toModel() (*model.Capsule, error) {
	var recipients []string
	if r.Recipients != "" {
		if err := json.Unmarshal([]byte(r.Recipients), &recipients); err != nil {
			return nil, fmt.Errorf("decoding recipients for capsule %s: %w", r.ID, err)
		}
	}

	c := &model.Capsule{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Title:      r.Title,
		Message:    r.Message,
		UnlockAt:   r.UnlockAt,
		Privacy:    model.Privacy(r.Privacy),
		Recipients: recipients,
		Status:     model.Status(r.Status),
		CreatedAt:  r.CreatedAt,
	}
	if r.RevealedAt.Valid {
		t := r.RevealedAt.Time
		c.RevealedAt = &t
	}
	return c, nil
}

// Capsule operations

func (s *SQLiteStore) CreateCapsule(ctx context.Context, c *model.Capsule) error {
	recipients, err := json.Marshal(c.Recipients)
	if err != nil {
		return fmt.Errorf("encoding recipients: %w", err)
	}
	if c.Recipients == nil {
		recipients = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO capsules (id, owner_id, title, message, unlock_at, privacy, recipients, status, created_at, revealed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		c.ID, c.OwnerID, c.Title, c.Message, c.UnlockAt.UTC(), string(c.Privacy), string(recipients), string(c.Status), c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting capsule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCapsule(ctx context.Context, id string) (*model.Capsule, error) {
	var row capsuleRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM capsules WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding capsule: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) ListCapsulesByOwner(ctx context.Context, ownerID string) ([]*model.Capsule, error) {
	var rows []capsuleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM capsules WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing capsules: %w", err)
	}

	result := make([]*model.Capsule, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (s *SQLiteStore) DeleteCapsule(ctx context.Context, id string) error {
	// Attachment rows cascade via the foreign key.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM capsules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting capsule: %w", err)
	}
	return nil
}

// MarkRevealed applies scheduled->revealed as a single conditional update.
// Two concurrent callers race safely: exactly one sees applied=true, and
// revealed_at is written exactly once.
func (s *SQLiteStore) MarkRevealed(ctx context.Context, id string, revealedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE capsules SET status = ?, revealed_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusRevealed), revealedAt.UTC(), id, string(model.StatusScheduled))
	if err != nil {
		return false, fmt.Errorf("marking capsule revealed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking reveal result: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkCancelled(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE capsules SET status = ? WHERE id = ? AND status = ?`,
		string(model.StatusCancelled), id, string(model.StatusScheduled))
	if err != nil {
		return false, fmt.Errorf("marking capsule cancelled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking cancel result: %w", err)
	}
	return n > 0, nil
}

// Attachment operations

type attachmentRow struct {
	ID          string `db:"id"`
	CapsuleID   string `db:"capsule_id"`
	Filename    string `db:"filename"`
	ContentType string `db:"content_type"`
	StoragePath string `db:"storage_path"`
	Checksum    string `db:"checksum"`
	Size        int64  `db:"size"`
}

func (r *attachmentRow) toModel() *model.Attachment {
	return &model.Attachment{
		ID:          r.ID,
		CapsuleID:   r.CapsuleID,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		StoragePath: r.StoragePath,
		Checksum:    r.Checksum,
		Size:        r.Size,
	}
}

func (s *SQLiteStore) CreateAttachment(ctx context.Context, a *model.Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, capsule_id, filename, content_type, storage_path, checksum, size)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CapsuleID, a.Filename, a.ContentType, a.StoragePath, a.Checksum, a.Size)
	if err != nil {
		return fmt.Errorf("inserting attachment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	var row attachmentRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM attachments WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding attachment: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) ListAttachmentsByCapsule(ctx context.Context, capsuleID string) ([]*model.Attachment, error) {
	var rows []attachmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM attachments WHERE capsule_id = ? ORDER BY id`, capsuleID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}

	result := make([]*model.Attachment, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toModel())
	}
	return result, nil
}

func (s *SQLiteStore) DeleteAttachment(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	return nil
}

// Audit operations

type auditRow struct {
	ID          int64     `db:"id"`
	CapsuleID   string    `db:"capsule_id"`
	Action      string    `db:"action"`
	PerformedBy string    `db:"performed_by"`
	Timestamp   time.Time `db:"timestamp"`
}

// Append writes one audit entry. Entries are never updated or deleted;
// capsule deletion leaves the trail in place on purpose.
func (s *SQLiteStore) Append(ctx context.Context, e *model.AuditEntry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (capsule_id, action, performed_by, timestamp)
		VALUES (?, ?, ?, ?)`,
		e.CapsuleID, e.Action, e.PerformedBy, e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListAuditEntries returns a capsule's audit trail in append order. The
// core service never calls this; it exists for the CLI history command.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, capsuleID string) ([]*model.AuditEntry, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM audit_entries WHERE capsule_id = ? ORDER BY id`, capsuleID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}

	result := make([]*model.AuditEntry, 0, len(rows))
	for i := range rows {
		r := rows[i]
		result = append(result, &model.AuditEntry{
			ID:          r.ID,
			CapsuleID:   r.CapsuleID,
			Action:      r.Action,
			PerformedBy: r.PerformedBy,
			Timestamp:   r.Timestamp,
		})
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db.DB)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time checks that SQLiteStore implements the store contracts
var (
	_ capsule.CapsuleStore    = (*SQLiteStore)(nil)
	_ capsule.AttachmentStore = (*SQLiteStore)(nil)
	_ capsule.AuditLog        = (*SQLiteStore)(nil)
)
