package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"

	"credentials/internal/platform/filestore"
	"credentials/internal/template/models"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

var tracer = otel.Tracer("credentials/internal/template/service")

type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	UpdateTemplate(ctx context.Context, t *models.Template) error
	FindTemplate(ctx context.Context, id int64) (*models.Template, error)
	FindTemplates(ctx context.Context, ids []int64) ([]*models.Template, error)
	ListTemplates(ctx context.Context, filter models.Filter) ([]*models.Template, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

type AssetStore interface {
	CreateAsset(ctx context.Context, a *models.Asset) error
	SetAssetFile(ctx context.Context, id int64, key string) error
	FindAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]*models.Asset, error)
	DeleteAsset(ctx context.Context, id int64) error
}

// Unlinker drops the definition links to a template before it is deleted.
type Unlinker interface {
	RemoveTemplate(ctx context.Context, templateID int64) error
}

// Service manages certificate templates and the assets they reference.
type Service struct {
	templates TemplateStore
	assets    AssetStore
	files     filestore.Storage
	tx        tx.Runner
	unlinker  Unlinker
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithUnlinker(u Unlinker) Option {
	return func(s *Service) {
		s.unlinker = u
	}
}

func New(templates TemplateStore, assets AssetStore, files filestore.Storage, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		templates: templates,
		assets:    assets,
		files:     files,
		tx:        runner,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUnlinker wires the definition store after construction.
func (s *Service) SetUnlinker(u Unlinker) {
	s.unlinker = u
}

// TemplateRequest carries the editable fields of a template.
type TemplateRequest struct {
	Name            string
	Content         string
	CertificateType string
	OrganizationID  *int64
}

func (s *Service) CreateTemplate(ctx context.Context, req TemplateRequest) (*models.Template, error) {
	ctx, span := tracer.Start(ctx, "template.CreateTemplate")
	defer span.End()

	t, err := models.NewTemplate(req.Name, req.Content, req.CertificateType, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.templates.CreateTemplate(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create template")
	}
	s.logger.InfoContext(ctx, "template created",
		"request_id", requestcontext.RequestID(ctx),
		"template_id", t.ID,
	)
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (*models.Template, error) {
	t, err := s.templates.FindTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	return t, nil
}

// GetTemplates returns the templates among ids that exist, ordered by id.
func (s *Service) GetTemplates(ctx context.Context, ids []int64) ([]*models.Template, error) {
	if len(ids) == 0 {
		return []*models.Template{}, nil
	}
	ts, err := s.templates.FindTemplates(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load templates")
	}
	return ts, nil
}

func (s *Service) TemplateExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.templates.FindTemplate(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	return true, nil
}

func (s *Service) ListTemplates(ctx context.Context, filter models.Filter) ([]*models.Template, error) {
	ts, err := s.templates.ListTemplates(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return ts, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, id int64, req TemplateRequest) (*models.Template, error) {
	t, err := models.NewTemplate(req.Name, req.Content, req.CertificateType, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	t.ID = id
	if err := s.templates.UpdateTemplate(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update template")
	}
	return t, nil
}

// DeleteTemplate removes the template and its definition links together.
func (s *Service) DeleteTemplate(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "template.DeleteTemplate")
	defer span.End()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if s.unlinker != nil {
			if err := s.unlinker.RemoveTemplate(ctx, id); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlink template")
			}
		}
		if err := s.templates.DeleteTemplate(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "template not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete template")
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err)
	}
	s.logger.InfoContext(ctx, "template deleted",
		"request_id", requestcontext.RequestID(ctx),
		"template_id", id,
	)
	return nil
}

// UploadAsset inserts the asset row, stores the file under the id-derived
// key and records the key in one transaction. A failure after the file was
// stored removes it again.
func (s *Service) UploadAsset(ctx context.Context, name string, upload models.Upload) (*models.Asset, error) {
	ctx, span := tracer.Start(ctx, "template.UploadAsset")
	defer span.End()

	name, err := models.ValidateAssetName(name)
	if err != nil {
		return nil, err
	}
	if err := upload.Validate(); err != nil {
		return nil, err
	}
	if _, err := filestore.CleanFilename(upload.Filename); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "asset filename is invalid")
	}

	asset := &models.Asset{Name: name}
	var storedKey string
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.assets.CreateAsset(ctx, asset); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create asset")
		}
		key, err := filestore.AssetKey(asset.ID, upload.Filename)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive asset key")
		}
		if err := s.files.Put(ctx, key, upload.Data); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store asset file")
		}
		storedKey = key
		if err := s.assets.SetAssetFile(ctx, asset.ID, key); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record asset file")
		}
		return nil
	})
	if err != nil {
		if storedKey != "" {
			s.removeFile(ctx, storedKey)
		}
		return nil, wrapTxErr(err)
	}
	return s.GetAsset(ctx, asset.ID)
}

// ReplaceAssetFile stores upload under the asset's key for its filename,
// points the record at it and removes the previous file if the key changed.
// Re-uploading the same filename overwrites in place; the bytes it replaced
// are written back if the record update then fails.
func (s *Service) ReplaceAssetFile(ctx context.Context, id int64, upload models.Upload) (*models.Asset, error) {
	ctx, span := tracer.Start(ctx, "template.ReplaceAssetFile")
	defer span.End()

	if err := upload.Validate(); err != nil {
		return nil, err
	}
	current, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := filestore.AssetKey(id, upload.Filename)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "asset filename is invalid")
	}
	var previous []byte
	if key == current.AssetFile {
		previous, err = filestore.ReadAll(ctx, s.files, key)
		if err != nil && !errors.Is(err, filestore.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset file")
		}
	}
	if err := s.files.Put(ctx, key, upload.Data); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store asset file")
	}
	if err := s.assets.SetAssetFile(ctx, id, key); err != nil {
		if previous != nil {
			s.restoreFile(ctx, key, previous)
		} else {
			s.removeFile(ctx, key)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record asset file")
	}
	if current.AssetFile != "" && current.AssetFile != key {
		s.removeFile(ctx, current.AssetFile)
	}
	return s.GetAsset(ctx, id)
}

func (s *Service) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	a, err := s.assets.FindAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return a, nil
}

func (s *Service) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	as, err := s.assets.ListAssets(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return as, nil
}

func (s *Service) OpenAssetFile(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if a.AssetFile == "" {
		return nil, "", dErrors.New(dErrors.CodeNotFound, "asset has no file")
	}
	rc, err := s.files.Open(ctx, a.AssetFile)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeNotFound, "asset file missing")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to open asset file")
	}
	return rc, a.AssetFile, nil
}

// DeleteAsset removes the row, then its file.
func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if err := s.assets.DeleteAsset(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete asset")
	}
	if a.AssetFile != "" {
		s.removeFile(ctx, a.AssetFile)
	}
	return nil
}

func (s *Service) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, filestore.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to remove asset file",
			"request_id", requestcontext.RequestID(ctx),
			"key", key,
			"error", err,
		)
	}
}

func (s *Service) restoreFile(ctx context.Context, key string, data []byte) {
	if err := s.files.Put(context.WithoutCancel(ctx), key, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore asset file",
			"request_id", requestcontext.RequestID(ctx),
			"key", key,
			"error", err,
		)
	}
}

func wrapTxErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "template write aborted")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit template change")
}
