package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credentials/internal/platform/postgres"
	"credentials/internal/site/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// PostgresStore persists sites in the site table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const siteColumns = `id, domain, name, created, modified`

func (s *PostgresStore) Create(ctx context.Context, site *models.Site) error {
	now := requestcontext.Now(ctx)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO site (domain, name, created, modified)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created, modified
	`, site.Domain, site.Name, now).Scan(&site.ID, &site.Created, &site.Modified)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Site, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+siteColumns+` FROM site WHERE id = $1`, id)
	return scanSite(row)
}

func (s *PostgresStore) FindByDomain(ctx context.Context, domain string) (*models.Site, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+siteColumns+` FROM site WHERE domain = $1`, domain)
	return scanSite(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Site, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `SELECT `+siteColumns+` FROM site ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	var out []*models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (*models.Site, error) {
	var site models.Site
	if err := row.Scan(&site.ID, &site.Domain, &site.Name, &site.Created, &site.Modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan site: %w", err)
	}
	return &site, nil
}
