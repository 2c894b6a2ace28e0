package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/models"
	"credentials/internal/platform/postgres"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// PostgresStore persists the credential ledger and attributes. Attribute
// rows cascade with their credential.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `id, username, credential_content_type, credential_id, status, uuid, download_url, created, modified`

// Create inserts the credential only if its definition row exists. A
// missing definition yields ErrNotFound, a taken award key ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, cred *models.UserCredential) error {
	if err := cred.Credential.Validate(); err != nil {
		return fmt.Errorf("insert credential: %w", sentinel.ErrNotFound)
	}
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO usercredential (username, credential_content_type, credential_id, status, uuid, download_url, created, modified)
		SELECT $1::text, $2::credential_content_type, $3::bigint, $4::text, $5::uuid, $6::text, $7::timestamptz, $7::timestamptz
		WHERE EXISTS (SELECT 1 FROM `+cred.Credential.Kind.Table()+` WHERE id = $3::bigint)
		RETURNING id, created, modified
	`, cred.Username, string(cred.Credential.Kind), cred.Credential.ID, string(cred.Status), cred.UUID,
		nullString(cred.DownloadURL), requestcontext.Now(ctx)).Scan(&cred.ID, &cred.Created, &cred.Modified)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("insert credential: definition: %w", sentinel.ErrNotFound)
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("insert credential: %w", sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("insert credential: %w", err)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.UserCredential, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM usercredential WHERE id = $1`, id)
	return scanCredential(row)
}

func (s *PostgresStore) FindByUUID(ctx context.Context, id uuid.UUID) (*models.UserCredential, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM usercredential WHERE uuid = $1`, id)
	return scanCredential(row)
}

func (s *PostgresStore) ListByUsername(ctx context.Context, username string) ([]*models.UserCredential, error) {
	return s.query(ctx, `SELECT `+credentialColumns+` FROM usercredential WHERE username = $1 ORDER BY id`, username)
}

func (s *PostgresStore) ListByDefinition(ctx context.Context, ref certmodels.Ref) ([]*models.UserCredential, error) {
	return s.query(ctx, `SELECT `+credentialColumns+` FROM usercredential
		WHERE credential_content_type = $1::credential_content_type AND credential_id = $2 ORDER BY id`,
		string(ref.Kind), ref.ID)
}

// Revoke flips awarded to revoked in one statement. A row that was already
// revoked is returned unchanged.
func (s *PostgresStore) Revoke(ctx context.Context, id int64) (*models.UserCredential, bool, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE usercredential SET status = $2, modified = $3
		WHERE id = $1 AND status = $4
		RETURNING `+credentialColumns,
		id, string(models.StatusRevoked), requestcontext.Now(ctx), string(models.StatusAwarded))
	cred, err := scanCredential(row)
	if err == nil {
		return cred, true, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, err
	}
	cred, err = s.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return cred, false, nil
}

func (s *PostgresStore) SetDownloadURL(ctx context.Context, id int64, url string) (*models.UserCredential, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE usercredential SET download_url = $2, modified = $3
		WHERE id = $1
		RETURNING `+credentialColumns, id, nullString(url), requestcontext.Now(ctx))
	return scanCredential(row)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM usercredential WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddAttribute(ctx context.Context, attr *models.Attribute) error {
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO usercredentialattribute (user_credential_id, namespace, name, value, created, modified)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created, modified
	`, attr.UserCredentialID, attr.Namespace, attr.Name, attr.Value, requestcontext.Now(ctx)).
		Scan(&attr.ID, &attr.Created, &attr.Modified)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert attribute: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert attribute: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttributes(ctx context.Context, credentialID int64, namespace string) ([]*models.Attribute, error) {
	query := `SELECT id, user_credential_id, namespace, name, value, created, modified
		FROM usercredentialattribute WHERE user_credential_id = $1`
	args := []any{credentialID}
	if namespace != "" {
		query += ` AND namespace = $2`
		args = append(args, namespace)
	}
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	defer rows.Close()
	out := []*models.Attribute{}
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.ID, &a.UserCredentialID, &a.Namespace, &a.Name, &a.Value, &a.Created, &a.Modified); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.UserCredential, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()
	out := []*models.UserCredential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*models.UserCredential, error) {
	var (
		c           models.UserCredential
		kind        string
		status      string
		downloadURL sql.NullString
	)
	err := row.Scan(&c.ID, &c.Username, &kind, &c.Credential.ID, &status, &c.UUID, &downloadURL, &c.Created, &c.Modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.Credential.Kind = certmodels.Kind(kind)
	c.Status = models.Status(status)
	c.DownloadURL = downloadURL.String
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
