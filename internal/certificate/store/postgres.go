package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"credentials/internal/certificate/models"
	"credentials/internal/domain"
	"credentials/internal/platform/postgres"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// PostgresStore persists course and program definitions with their
// signatory and template junction rows. The unique index on
// (course_id, certificate_type, site_id) is the only duplicate guard.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	courseColumns  = `id, is_active, title, site_id, created, modified, course_id, certificate_type`
	programColumns = `id, is_active, title, site_id, created, modified, program_id`
)

func (s *PostgresStore) CreateCourse(ctx context.Context, c *models.CourseCertificate) error {
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO coursecertificate (is_active, title, site_id, course_id, certificate_type, created, modified)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created, modified
	`, c.IsActive, nullTitle(c.Title), c.SiteID, c.CourseID, string(c.CertificateType), requestcontext.Now(ctx)).
		Scan(&c.ID, &c.Created, &c.Modified)
	if err != nil {
		return classifyInsert(err, "insert course certificate")
	}
	c.SignatoryIDs, c.TemplateIDs = []int64{}, []int64{}
	return nil
}

func (s *PostgresStore) CreateProgram(ctx context.Context, p *models.ProgramCertificate) error {
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO programcertificate (is_active, title, site_id, program_id, created, modified)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created, modified
	`, p.IsActive, nullTitle(p.Title), p.SiteID, p.ProgramID, requestcontext.Now(ctx)).
		Scan(&p.ID, &p.Created, &p.Modified)
	if err != nil {
		return classifyInsert(err, "insert program certificate")
	}
	p.SignatoryIDs, p.TemplateIDs = []int64{}, []int64{}
	return nil
}

func classifyInsert(err error, op string) error {
	switch {
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyUsed)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: site: %w", op, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) FindCourse(ctx context.Context, id int64) (*models.CourseCertificate, error) {
	out, err := s.queryCourses(ctx, `SELECT `+courseColumns+` FROM coursecertificate WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out[0], nil
}

func (s *PostgresStore) FindProgram(ctx context.Context, id int64) (*models.ProgramCertificate, error) {
	out, err := s.queryPrograms(ctx, `SELECT `+programColumns+` FROM programcertificate WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out[0], nil
}

func (s *PostgresStore) FindCourseByKey(ctx context.Context, courseID string, certType domain.CertificateType, siteID int64) (*models.CourseCertificate, error) {
	out, err := s.queryCourses(ctx, `
		SELECT `+courseColumns+` FROM coursecertificate
		WHERE course_id = $1 AND certificate_type = $2 AND site_id = $3
	`, courseID, string(certType), siteID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out[0], nil
}

func (s *PostgresStore) ListCourses(ctx context.Context, filter models.CourseFilter) ([]*models.CourseCertificate, error) {
	args := []any{filter.SiteID}
	where := []string{"site_id = $1"}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.CertificateType != "" {
		args = append(args, string(filter.CertificateType))
		where = append(where, fmt.Sprintf("certificate_type = $%d", len(args)))
	}
	return s.queryCourses(ctx, `SELECT `+courseColumns+` FROM coursecertificate WHERE `+
		strings.Join(where, " AND ")+` ORDER BY id`, args...)
}

func (s *PostgresStore) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.ProgramCertificate, error) {
	if filter.ProgramID != 0 {
		return s.queryPrograms(ctx, `SELECT `+programColumns+` FROM programcertificate
			WHERE site_id = $1 AND program_id = $2 ORDER BY id`, filter.SiteID, filter.ProgramID)
	}
	return s.queryPrograms(ctx, `SELECT `+programColumns+` FROM programcertificate
		WHERE site_id = $1 ORDER BY id`, filter.SiteID)
}

func (s *PostgresStore) SetActive(ctx context.Context, ref models.Ref, active bool) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE `+ref.Kind.Table()+` SET is_active = $2, modified = $3 WHERE id = $1`,
		ref.ID, active, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) AttachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) error {
	return s.link(ctx, ref, "signatories", "signatory_id", signatoryID)
}

func (s *PostgresStore) AttachTemplate(ctx context.Context, ref models.Ref, templateID int64) error {
	return s.link(ctx, ref, "templates", "certificatetemplate_id", templateID)
}

func (s *PostgresStore) DetachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) error {
	return s.unlink(ctx, ref, "signatories", "signatory_id", signatoryID)
}

func (s *PostgresStore) DetachTemplate(ctx context.Context, ref models.Ref, templateID int64) error {
	return s.unlink(ctx, ref, "templates", "certificatetemplate_id", templateID)
}

// link touches the definition row, then inserts the junction row. Repeated
// links are absorbed by ON CONFLICT DO NOTHING.
func (s *PostgresStore) link(ctx context.Context, ref models.Ref, relation, column string, targetID int64) error {
	if err := s.touch(ctx, ref); err != nil {
		return err
	}
	table := ref.Kind.Table()
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s_%[2]s (%[1]s_id, %[3]s) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, table, relation, column), ref.ID, targetID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("link %s: %w", relation, sentinel.ErrNotFound)
		}
		return fmt.Errorf("link %s: %w", relation, err)
	}
	return nil
}

func (s *PostgresStore) unlink(ctx context.Context, ref models.Ref, relation, column string, targetID int64) error {
	if err := s.touch(ctx, ref); err != nil {
		return err
	}
	table := ref.Kind.Table()
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %[1]s_%[2]s WHERE %[1]s_id = $1 AND %[3]s = $2`, table, relation, column),
		ref.ID, targetID)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", relation, err)
	}
	return nil
}

func (s *PostgresStore) touch(ctx context.Context, ref models.Ref) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE `+ref.Kind.Table()+` SET modified = $2 WHERE id = $1`, ref.ID, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("touch definition: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Exists(ctx context.Context, ref models.Ref) (bool, error) {
	var exists bool
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+ref.Kind.Table()+` WHERE id = $1)`, ref.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("definition exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SignatoryInUse(ctx context.Context, signatoryID int64) (bool, error) {
	var inUse bool
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM coursecertificate_signatories WHERE signatory_id = $1)
		    OR EXISTS (SELECT 1 FROM programcertificate_signatories WHERE signatory_id = $1)
	`, signatoryID).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("signatory in use: %w", err)
	}
	return inUse, nil
}

// RemoveTemplate deletes the junction rows for templateID. The foreign keys
// cascade as well; this keeps the call explicit inside the delete transaction.
func (s *PostgresStore) RemoveTemplate(ctx context.Context, templateID int64) error {
	exec := tx.Exec(ctx, s.db)
	for _, table := range []string{"coursecertificate_templates", "programcertificate_templates"} {
		if _, err := exec.ExecContext(ctx, `DELETE FROM `+table+` WHERE certificatetemplate_id = $1`, templateID); err != nil {
			return fmt.Errorf("remove template links: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) queryCourses(ctx context.Context, query string, args ...any) ([]*models.CourseCertificate, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query course certificates: %w", err)
	}
	defer rows.Close()
	out := []*models.CourseCertificate{}
	for rows.Next() {
		var (
			c        models.CourseCertificate
			title    sql.NullString
			certType string
		)
		if err := rows.Scan(&c.ID, &c.IsActive, &title, &c.SiteID, &c.Created, &c.Modified, &c.CourseID, &certType); err != nil {
			return nil, fmt.Errorf("scan course certificate: %w", err)
		}
		c.Title = title.String
		c.CertificateType = domain.CertificateType(certType)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	bases := make([]*models.Base, len(out))
	for i, c := range out {
		bases[i] = &c.Base
	}
	if err := s.loadRelations(ctx, models.KindCourse, bases); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) queryPrograms(ctx context.Context, query string, args ...any) ([]*models.ProgramCertificate, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query program certificates: %w", err)
	}
	defer rows.Close()
	out := []*models.ProgramCertificate{}
	for rows.Next() {
		var (
			p     models.ProgramCertificate
			title sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.IsActive, &title, &p.SiteID, &p.Created, &p.Modified, &p.ProgramID); err != nil {
			return nil, fmt.Errorf("scan program certificate: %w", err)
		}
		p.Title = title.String
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	bases := make([]*models.Base, len(out))
	for i, p := range out {
		bases[i] = &p.Base
	}
	if err := s.loadRelations(ctx, models.KindProgram, bases); err != nil {
		return nil, err
	}
	return out, nil
}

// loadRelations fills SignatoryIDs and TemplateIDs with one query per junction.
func (s *PostgresStore) loadRelations(ctx context.Context, kind models.Kind, bases []*models.Base) error {
	byID := make(map[int64]*models.Base, len(bases))
	ids := make([]int64, 0, len(bases))
	for _, b := range bases {
		b.SignatoryIDs, b.TemplateIDs = []int64{}, []int64{}
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	table := kind.Table()
	relations := []struct {
		suffix string
		column string
		target func(*models.Base) *[]int64
	}{
		{"signatories", "signatory_id", func(b *models.Base) *[]int64 { return &b.SignatoryIDs }},
		{"templates", "certificatetemplate_id", func(b *models.Base) *[]int64 { return &b.TemplateIDs }},
	}
	for _, rel := range relations {
		rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, fmt.Sprintf(
			`SELECT %[1]s_id, %[3]s FROM %[1]s_%[2]s WHERE %[1]s_id = ANY($1) ORDER BY %[1]s_id, %[3]s`,
			table, rel.suffix, rel.column), pq.Array(ids))
		if err != nil {
			return fmt.Errorf("load %s: %w", rel.suffix, err)
		}
		for rows.Next() {
			var ownerID, targetID int64
			if err := rows.Scan(&ownerID, &targetID); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", rel.suffix, err)
			}
			if b, ok := byID[ownerID]; ok {
				dst := rel.target(b)
				*dst = append(*dst, targetID)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func nullTitle(title string) sql.NullString {
	return sql.NullString{String: title, Valid: title != ""}
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

