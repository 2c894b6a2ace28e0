package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"

	"credentials/internal/platform/filestore"
	"credentials/internal/signatory/models"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

var tracer = otel.Tracer("credentials/internal/signatory/service")

type Store interface {
	Create(ctx context.Context, sig *models.Signatory) error
	SetImage(ctx context.Context, id int64, key string) error
	Update(ctx context.Context, id int64, name, title string) (*models.Signatory, error)
	FindByID(ctx context.Context, id int64) (*models.Signatory, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*models.Signatory, error)
	List(ctx context.Context) ([]*models.Signatory, error)
	Delete(ctx context.Context, id int64) error
}

// UsageChecker reports whether any certificate definition references a signatory.
type UsageChecker interface {
	SignatoryInUse(ctx context.Context, signatoryID int64) (bool, error)
}

// Service manages signatories and their signature images.
type Service struct {
	store  Store
	files  filestore.Storage
	tx     tx.Runner
	usage  UsageChecker
	policy models.ImagePolicy
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithImagePolicy(p models.ImagePolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithUsageChecker(u UsageChecker) Option {
	return func(s *Service) {
		s.usage = u
	}
}

func New(store Store, files filestore.Storage, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		files:  files,
		tx:     runner,
		policy: models.DefaultImagePolicy(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUsageChecker wires the reference check after construction, since the
// certificate module that implements it depends on this service.
func (s *Service) SetUsageChecker(u UsageChecker) {
	s.usage = u
}

type CreateRequest struct {
	Name   string
	Title  string
	Upload models.Upload
}

// CreateSignatory validates the image before any write, then inserts the row,
// stores the file under the id-derived key and records the key, all in one
// transaction. A failure after the file was stored removes it again.
func (s *Service) CreateSignatory(ctx context.Context, req CreateRequest) (*models.Signatory, error) {
	ctx, span := tracer.Start(ctx, "signatory.CreateSignatory")
	defer span.End()

	name, title, err := models.ValidateDetails(req.Name, req.Title)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(req.Upload); err != nil {
		return nil, err
	}
	if _, err := filestore.CleanFilename(req.Upload.Filename); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidImage, "image filename is invalid")
	}

	sig := &models.Signatory{Name: name, Title: title}
	var storedKey string
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, sig); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create signatory")
		}
		key, err := filestore.SignatoryKey(sig.ID, req.Upload.Filename)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive image key")
		}
		if err := s.files.Put(ctx, key, req.Upload.Data); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store signatory image")
		}
		storedKey = key
		if err := s.store.SetImage(ctx, sig.ID, key); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record signatory image")
		}
		sig.Image = key
		return nil
	})
	if err != nil {
		if storedKey != "" {
			s.removeFile(ctx, storedKey)
		}
		return nil, s.wrapTxErr(err)
	}

	s.logger.InfoContext(ctx, "signatory created",
		"request_id", requestcontext.RequestID(ctx),
		"signatory_id", sig.ID,
		"image", sig.Image,
	)
	return s.GetSignatory(ctx, sig.ID)
}

func (s *Service) GetSignatory(ctx context.Context, id int64) (*models.Signatory, error) {
	sig, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "signatory not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatory")
	}
	return sig, nil
}

// GetSignatories returns the signatories among ids that exist, ordered by id.
func (s *Service) GetSignatories(ctx context.Context, ids []int64) ([]*models.Signatory, error) {
	if len(ids) == 0 {
		return []*models.Signatory{}, nil
	}
	sigs, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatories")
	}
	return sigs, nil
}

func (s *Service) SignatoryExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatory")
	}
	return true, nil
}

func (s *Service) ListSignatories(ctx context.Context) ([]*models.Signatory, error) {
	sigs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list signatories")
	}
	return sigs, nil
}

func (s *Service) UpdateSignatory(ctx context.Context, id int64, name, title string) (*models.Signatory, error) {
	name, title, err := models.ValidateDetails(name, title)
	if err != nil {
		return nil, err
	}
	sig, err := s.store.Update(ctx, id, name, title)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "signatory not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update signatory")
	}
	return sig, nil
}

// ReplaceSignatoryImage stores the new image, points the row at it and then
// removes the previous file when its key differs. An overwrite of the live
// key is undone if the row update fails.
func (s *Service) ReplaceSignatoryImage(ctx context.Context, id int64, upload models.Upload) (*models.Signatory, error) {
	ctx, span := tracer.Start(ctx, "signatory.ReplaceSignatoryImage")
	defer span.End()

	if err := s.policy.Check(upload); err != nil {
		return nil, err
	}
	current, err := s.GetSignatory(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := filestore.SignatoryKey(id, upload.Filename)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidImage, "image filename is invalid")
	}
	var previous []byte
	if key == current.Image {
		previous, err = filestore.ReadAll(ctx, s.files, key)
		if err != nil && !errors.Is(err, filestore.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read signatory image")
		}
	}
	if err := s.files.Put(ctx, key, upload.Data); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store signatory image")
	}
	if err := s.store.SetImage(ctx, id, key); err != nil {
		if previous != nil {
			if err := s.files.Put(context.WithoutCancel(ctx), key, previous); err != nil {
				s.logger.ErrorContext(ctx, "failed to restore signatory image",
					"request_id", requestcontext.RequestID(ctx),
					"key", key,
					"error", err,
				)
			}
		} else {
			s.removeFile(ctx, key)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "signatory not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record signatory image")
	}
	if current.Image != "" && current.Image != key {
		s.removeFile(ctx, current.Image)
	}
	return s.GetSignatory(ctx, id)
}

// OpenSignatoryImage streams the stored signature image.
func (s *Service) OpenSignatoryImage(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	sig, err := s.GetSignatory(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if sig.Image == "" {
		return nil, "", dErrors.New(dErrors.CodeNotFound, "signatory has no image")
	}
	rc, err := s.files.Open(ctx, sig.Image)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeNotFound, "signatory image missing")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to open signatory image")
	}
	return rc, sig.Image, nil
}

// DeleteSignatory refuses while any definition references the signatory.
// The reference check and the row delete run in one transaction so a
// concurrent attach cannot slip in between. The image file goes last.
func (s *Service) DeleteSignatory(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "signatory.DeleteSignatory")
	defer span.End()

	var image string
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sig, err := s.GetSignatory(ctx, id)
		if err != nil {
			return err
		}
		if s.usage != nil {
			inUse, err := s.usage.SignatoryInUse(ctx, id)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check signatory references")
			}
			if inUse {
				return dErrors.New(dErrors.CodeConflict, "signatory in use")
			}
		}
		if err := s.store.Delete(ctx, id); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInUse):
				return dErrors.New(dErrors.CodeConflict, "signatory in use")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "signatory not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete signatory")
		}
		image = sig.Image
		return nil
	})
	if err != nil {
		return s.wrapTxErr(err)
	}
	if image != "" {
		s.removeFile(ctx, image)
	}
	s.logger.InfoContext(ctx, "signatory deleted",
		"request_id", requestcontext.RequestID(ctx),
		"signatory_id", id,
	)
	return nil
}

func (s *Service) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, filestore.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to remove signatory image",
			"request_id", requestcontext.RequestID(ctx),
			"key", key,
			"error", err,
		)
	}
}

func (s *Service) wrapTxErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "signatory write aborted")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit signatory")
}
