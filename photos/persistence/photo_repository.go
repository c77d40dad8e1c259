package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/dfryer1193/photolog/shared/db"
	"github.com/dfryer1193/photolog/shared/db/sqlite"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var _ domain.PhotoRepository = (*SQLitePhotoRepository)(nil)

// SQLitePhotoRepository implements domain.PhotoRepository on the photos table.
// Every call holds a pooled connection only for the statement it runs.
type SQLitePhotoRepository struct {
	db      *sql.DB
	kind    domain.PayloadKind
	payload string
	now     func() time.Time
}

// NewPhotoRepository creates a repository over a migrated photos database.
// kind must match the payload kind the database was migrated with.
func NewPhotoRepository(sqlDB *sql.DB, kind domain.PayloadKind) *SQLitePhotoRepository {
	if kind == "" {
		kind = domain.PayloadReference
	}
	return &SQLitePhotoRepository{
		db:      sqlDB,
		kind:    kind,
		payload: sqlite.PayloadColumn(kind),
		now:     domain.Now,
	}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Insert stores a new photo, assigning its ID and, if unset, its creation time
func (r *SQLitePhotoRepository) Insert(ctx context.Context, p *domain.Photo) (int64, error) {
	const op = "insert photo"
	if p == nil {
		return 0, domain.NewValidationError(op, "photo cannot be nil")
	}
	if p.IsPersisted() {
		return 0, domain.NewValidationError(op, fmt.Sprintf("photo %d is already persisted", p.ID))
	}
	if !p.HasReference(r.kind) {
		return 0, domain.NewValidationError(op, "photo reference cannot be empty")
	}

	createdAt := p.CreatedAt.UTC().Truncate(time.Millisecond)
	if p.CreatedAt.IsZero() {
		createdAt = r.now()
	}

	query := fmt.Sprintf(`
		INSERT INTO photos (%s, title, description, created_at)
		VALUES (?, ?, ?, ?)
	`, r.payload)

	var id int64
	err := db.WithConn(ctx, r.db, func(ctx context.Context, ex db.Executor) error {
		res, err := ex.ExecContext(ctx, query,
			r.bindPayload(p.Reference),
			p.Title,
			p.Description,
			toMillis(createdAt),
		)
		if err != nil {
			return err
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read assigned photo id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, storageError(op, err)
	}

	p.ID = id
	p.CreatedAt = fromMillis(toMillis(createdAt))
	return id, nil
}

const updatePhotoQuery = `
	UPDATE photos
	SET title = ?, description = ?
	WHERE id = ?
`

// Update rewrites the title and description of an existing photo.
// A missing ID is reported as zero affected rows.
func (r *SQLitePhotoRepository) Update(ctx context.Context, p *domain.Photo) (int64, error) {
	const op = "update photo"
	if p == nil {
		return 0, domain.NewValidationError(op, "photo cannot be nil")
	}

	affected, err := r.exec(ctx, updatePhotoQuery, p.Title, p.Description, p.ID)
	if err != nil {
		return 0, storageError(op, err)
	}
	return affected, nil
}

const deletePhotoQuery = `
	DELETE FROM photos WHERE id = ?
`

// Delete removes a photo. Deleting a missing ID affects zero rows.
func (r *SQLitePhotoRepository) Delete(ctx context.Context, id int64) (int64, error) {
	affected, err := r.exec(ctx, deletePhotoQuery, id)
	if err != nil {
		return 0, storageError("delete photo", err)
	}
	return affected, nil
}

const deleteAllPhotosQuery = `
	DELETE FROM photos
`

// DeleteAll removes every photo and returns how many were removed
func (r *SQLitePhotoRepository) DeleteAll(ctx context.Context) (int64, error) {
	affected, err := r.exec(ctx, deleteAllPhotosQuery)
	if err != nil {
		return 0, storageError("delete all photos", err)
	}
	return affected, nil
}

// ListAll returns a fresh copy of every photo, newest first.
// Photos created in the same millisecond come back highest ID first.
func (r *SQLitePhotoRepository) ListAll(ctx context.Context) ([]domain.Photo, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, title, description, created_at
		FROM photos
		ORDER BY created_at DESC, id DESC
	`, r.payload)

	photos := make([]domain.Photo, 0)
	err := db.WithConn(ctx, r.db, func(ctx context.Context, ex db.Executor) error {
		rows, err := ex.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to list photos: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var row photoRow
			if err := row.scan(rows); err != nil {
				return fmt.Errorf("failed to scan photo row: %w", err)
			}
			photos = append(photos, row.toDomain())
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating photo rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storageError("list photos", err)
	}

	return photos, nil
}

// Get retrieves a single photo by ID
func (r *SQLitePhotoRepository) Get(ctx context.Context, id int64) (domain.Photo, error) {
	const op = "get photo"
	query := fmt.Sprintf(`
		SELECT id, %s, title, description, created_at
		FROM photos
		WHERE id = ?
	`, r.payload)

	var row photoRow
	err := db.WithConn(ctx, r.db, func(ctx context.Context, ex db.Executor) error {
		return row.scan(ex.QueryRowContext(ctx, query, id))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Photo{}, domain.Wrap(domain.KindNotFound, op, fmt.Sprintf("photo %d not found", id), nil)
	}
	if err != nil {
		return domain.Photo{}, storageError(op, err)
	}

	return row.toDomain(), nil
}

// Count returns the number of stored photos
func (r *SQLitePhotoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := db.WithConn(ctx, r.db, func(ctx context.Context, ex db.Executor) error {
		return ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos").Scan(&count)
	})
	if err != nil {
		return 0, storageError("count photos", err)
	}
	return count, nil
}

// exec runs a single write statement and reports the affected row count
func (r *SQLitePhotoRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := db.WithConn(ctx, r.db, func(ctx context.Context, ex db.Executor) error {
		res, err := ex.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		return nil
	})
	return affected, err
}

func (r *SQLitePhotoRepository) bindPayload(reference string) any {
	if r.kind == domain.PayloadBlob {
		return []byte(reference)
	}
	return reference
}

// storageError classifies a driver or pool failure for the caller
func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isConstraintViolation(err):
		return domain.Wrap(domain.KindStorageConstraint, op, "storage constraint violated", err)
	case errors.Is(err, db.ErrConnUnavailable), errors.Is(err, sql.ErrConnDone):
		return domain.Wrap(domain.KindStorageUnavailable, op, "storage unavailable", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// extended result codes carry the primary code in the low byte
	return sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT
}

type rowScanner interface {
	Scan(dest ...any) error
}

// photoRow is a private struct used to scan database rows.
// The payload is scanned as bytes so TEXT and BLOB columns share one path.
type photoRow struct {
	ID          int64  `db:"id"`
	Payload     []byte `db:"payload"`
	Title       string `db:"title"`
	Description string `db:"description"`
	CreatedAt   int64  `db:"created_at"`
}

func (pr *photoRow) scan(s rowScanner) error {
	return s.Scan(
		&pr.ID,
		&pr.Payload,
		&pr.Title,
		&pr.Description,
		&pr.CreatedAt,
	)
}

// toDomain converts a photoRow to a domain.Photo
func (pr *photoRow) toDomain() domain.Photo {
	return domain.Photo{
		ID:          pr.ID,
		Reference:   string(pr.Payload),
		Title:       pr.Title,
		Description: pr.Description,
		CreatedAt:   fromMillis(pr.CreatedAt),
	}
}
