package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"time"

	"credentials/internal/platform/filestore"
	sigmodels "credentials/internal/signatory/models"
	sigservice "credentials/internal/signatory/service"
	sigstore "credentials/internal/signatory/store"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/tx"
)

// attachDuringCheck starts an attach from another request right after the
// delete path has checked references, then gives it time to land.
type attachDuringCheck struct {
	inner  sigservice.UsageChecker
	attach func() error
	result chan error
}

func (u *attachDuringCheck) SignatoryInUse(ctx context.Context, id int64) (bool, error) {
	inUse, err := u.inner.SignatoryInUse(ctx, id)
	go func() { u.result <- u.attach() }()
	time.Sleep(30 * time.Millisecond)
	return inUse, err
}

func (s *ServiceSuite) signatories() (*sigservice.Service, *Service) {
	sigs := sigservice.New(sigstore.NewInMemory(), filestore.NewMemory(), tx.Journal{})
	svc := New(s.store, siteChecker{}, sigs, idSet{}, WithRunner(tx.Journal{}))
	sigs.SetUsageChecker(svc)
	return sigs, svc
}

func (s *ServiceSuite) signatory(sigs *sigservice.Service) *sigmodels.Signatory {
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	sig, err := sigs.CreateSignatory(s.ctx, sigservice.CreateRequest{
		Name:   "Grace Hopper",
		Title:  "Registrar",
		Upload: sigmodels.Upload{Filename: "grace.png", Data: buf.Bytes()},
	})
	s.Require().NoError(err)
	return sig
}

type siteChecker struct{}

func (siteChecker) SiteExists(context.Context, int64) (bool, error) { return true, nil }

func (s *ServiceSuite) TestAttachAfterDeleteCheckFindsNoSignatory() {
	sigs, svc := s.signatories()
	sig := s.signatory(sigs)
	c := s.course("race/attach/1", "honor")

	racer := &attachDuringCheck{
		inner: svc,
		attach: func() error {
			_, err := svc.AttachSignatory(context.Background(), c.Ref(), sig.ID)
			return err
		},
		result: make(chan error, 1),
	}
	sigs.SetUsageChecker(racer)

	s.Require().NoError(sigs.DeleteSignatory(s.ctx, sig.ID))

	select {
	case err := <-racer.result:
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "attach must see the deleted signatory, got %v", err)
	case <-time.After(2 * time.Second):
		s.Fail("attach never finished")
	}
	inUse, err := s.store.SignatoryInUse(s.ctx, sig.ID)
	s.Require().NoError(err)
	s.False(inUse, "definition references a deleted signatory")
}

func (s *ServiceSuite) TestConcurrentAttachAndDeleteLeaveNoDanglingLink() {
	const goroutines = 50
	sigs, svc := s.signatories()
	sig := s.signatory(sigs)
	c := s.course("race/attach/2", "verified")

	var wg sync.WaitGroup
	var deleteErr error
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == goroutines/2 {
				deleteErr = sigs.DeleteSignatory(context.Background(), sig.ID)
				return
			}
			_, err := svc.AttachSignatory(context.Background(), c.Ref(), sig.ID)
			if err != nil {
				s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
			}
		}(i)
	}
	wg.Wait()

	_, lookupErr := sigs.GetSignatory(s.ctx, sig.ID)
	inUse, err := s.store.SignatoryInUse(s.ctx, sig.ID)
	s.Require().NoError(err)
	if deleteErr == nil {
		s.True(dErrors.HasCode(lookupErr, dErrors.CodeNotFound))
		s.False(inUse, "definition references a deleted signatory")
	} else {
		s.True(dErrors.HasCode(deleteErr, dErrors.CodeConflict))
		s.NoError(lookupErr)
		s.True(inUse)
	}
}
