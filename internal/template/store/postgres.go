package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"credentials/internal/domain"
	"credentials/internal/template/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// PostgresStore persists templates and assets. Deleting a template cascades
// to the definition junction tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	templateColumns = `id, name, content, certificate_type, organization_id, created, modified`
	assetColumns    = `id, name, asset_file, created, modified`
)

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO certificatetemplate (name, content, certificate_type, organization_id, created, modified)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created, modified
	`, t.Name, t.Content, nullType(t.CertificateType), nullOrg(t.OrganizationID), requestcontext.Now(ctx)).
		Scan(&t.ID, &t.Created, &t.Modified)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTemplate(ctx context.Context, t *models.Template) error {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE certificatetemplate
		SET name = $2, content = $3, certificate_type = $4, organization_id = $5, modified = $6
		WHERE id = $1
		RETURNING `+templateColumns,
		t.ID, t.Name, t.Content, nullType(t.CertificateType), nullOrg(t.OrganizationID), requestcontext.Now(ctx))
	updated, err := scanTemplate(row)
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}

func (s *PostgresStore) FindTemplate(ctx context.Context, id int64) (*models.Template, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+templateColumns+` FROM certificatetemplate WHERE id = $1`, id)
	return scanTemplate(row)
}

func (s *PostgresStore) FindTemplates(ctx context.Context, ids []int64) ([]*models.Template, error) {
	return s.queryTemplates(ctx, `SELECT `+templateColumns+` FROM certificatetemplate WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
}

func (s *PostgresStore) ListTemplates(ctx context.Context, filter models.Filter) ([]*models.Template, error) {
	var (
		where []string
		args  []any
	)
	if filter.Name != "" {
		args = append(args, filter.Name)
		where = append(where, fmt.Sprintf("name = $%d", len(args)))
	}
	if filter.CertificateType != "" {
		args = append(args, string(filter.CertificateType))
		where = append(where, fmt.Sprintf("certificate_type = $%d", len(args)))
	}
	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	query := `SELECT ` + templateColumns + ` FROM certificatetemplate`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	return s.queryTemplates(ctx, query+` ORDER BY id`, args...)
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM certificatetemplate WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO certificatetemplateasset (name, asset_file, created, modified)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created, modified
	`, a.Name, a.AssetFile, requestcontext.Now(ctx)).Scan(&a.ID, &a.Created, &a.Modified)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetAssetFile(ctx context.Context, id int64, key string) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE certificatetemplateasset SET asset_file = $2, modified = $3 WHERE id = $1
	`, id, key, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("update asset file: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) FindAsset(ctx context.Context, id int64) (*models.Asset, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+assetColumns+` FROM certificatetemplateasset WHERE id = $1`, id)
	return scanAsset(row)
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `SELECT `+assetColumns+` FROM certificatetemplateasset ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()
	out := []*models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, id int64) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM certificatetemplateasset WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) queryTemplates(ctx context.Context, query string, args ...any) ([]*models.Template, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()
	out := []*models.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (*models.Template, error) {
	var (
		t        models.Template
		certType sql.NullString
		org      sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Content, &certType, &org, &t.Created, &t.Modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if certType.Valid {
		t.CertificateType = domain.CertificateType(certType.String)
	}
	if org.Valid {
		id := org.Int64
		t.OrganizationID = &id
	}
	return &t, nil
}

func scanAsset(row scanner) (*models.Asset, error) {
	var a models.Asset
	if err := row.Scan(&a.ID, &a.Name, &a.AssetFile, &a.Created, &a.Modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return &a, nil
}

func nullType(t domain.CertificateType) sql.NullString {
	return sql.NullString{String: string(t), Valid: t != ""}
}

func nullOrg(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
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
