package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"credentials/internal/platform/postgres"
	"credentials/internal/signatory/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// PostgresStore persists signatories. Junction foreign keys use ON DELETE
// RESTRICT, so deleting a referenced signatory fails with ErrInUse.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const signatoryColumns = `id, name, title, image, created, modified`

func (s *PostgresStore) Create(ctx context.Context, sig *models.Signatory) error {
	now := requestcontext.Now(ctx)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO signatory (name, title, image, created, modified)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created, modified
	`, sig.Name, sig.Title, sig.Image, now).Scan(&sig.ID, &sig.Created, &sig.Modified)
	if err != nil {
		return fmt.Errorf("insert signatory: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetImage(ctx context.Context, id int64, key string) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE signatory SET image = $2, modified = $3 WHERE id = $1
	`, id, key, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("update signatory image: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Update(ctx context.Context, id int64, name, title string) (*models.Signatory, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE signatory SET name = $2, title = $3, modified = $4
		WHERE id = $1
		RETURNING `+signatoryColumns, id, name, title, requestcontext.Now(ctx))
	return scanSignatory(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Signatory, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+signatoryColumns+` FROM signatory WHERE id = $1`, id)
	return scanSignatory(row)
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []int64) ([]*models.Signatory, error) {
	return s.query(ctx, `SELECT `+signatoryColumns+` FROM signatory WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Signatory, error) {
	return s.query(ctx, `SELECT `+signatoryColumns+` FROM signatory ORDER BY id`)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM signatory WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrInUse
		}
		return fmt.Errorf("delete signatory: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Signatory, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signatories: %w", err)
	}
	defer rows.Close()
	out := []*models.Signatory{}
	for rows.Next() {
		sig, err := scanSignatory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSignatory(row scanner) (*models.Signatory, error) {
	var sig models.Signatory
	if err := row.Scan(&sig.ID, &sig.Name, &sig.Title, &sig.Image, &sig.Created, &sig.Modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan signatory: %w", err)
	}
	return &sig, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
