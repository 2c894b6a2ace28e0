package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/requestcontext"
)

type awardKey struct {
	username string
	ref      certmodels.Ref
}

// InMemory holds credentials and their attributes under one lock, so the
// award key check and insert cannot interleave and deletes cascade.
type InMemory struct {
	mu         sync.RWMutex
	nextID     int64
	nextAttrID int64
	creds      map[int64]*models.UserCredential
	byKey      map[awardKey]int64
	byUUID     map[uuid.UUID]int64
	attrs      map[int64][]*models.Attribute
}

func NewInMemory() *InMemory {
	return &InMemory{
		creds:  make(map[int64]*models.UserCredential),
		byKey:  make(map[awardKey]int64),
		byUUID: make(map[uuid.UUID]int64),
		attrs:  make(map[int64][]*models.Attribute),
	}
}

func (s *InMemory) Create(ctx context.Context, cred *models.UserCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := awardKey{username: cred.Username, ref: cred.Credential}
	if _, taken := s.byKey[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.byUUID[cred.UUID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.nextID++
	now := requestcontext.Now(ctx)
	cred.ID = s.nextID
	cred.Created = now
	cred.Modified = now
	stored := *cred
	s.creds[cred.ID] = &stored
	s.byKey[key] = cred.ID
	s.byUUID[cred.UUID] = cred.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id int64) (*models.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *InMemory) FindByUUID(ctx context.Context, id uuid.UUID) (*models.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	credID, ok := s.byUUID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.creds[credID]
	return &out, nil
}

func (s *InMemory) ListByUsername(ctx context.Context, username string) ([]*models.UserCredential, error) {
	return s.list(ctx, func(c *models.UserCredential) bool { return c.Username == username })
}

func (s *InMemory) ListByDefinition(ctx context.Context, ref certmodels.Ref) ([]*models.UserCredential, error) {
	return s.list(ctx, func(c *models.UserCredential) bool { return c.Credential == ref })
}

func (s *InMemory) list(ctx context.Context, keep func(*models.UserCredential) bool) ([]*models.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.UserCredential{}
	for _, c := range s.creds {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Revoke moves an awarded credential to revoked. changed is false when it
// was already revoked.
func (s *InMemory) Revoke(ctx context.Context, id int64) (*models.UserCredential, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return nil, false, sentinel.ErrNotFound
	}
	changed := c.Status != models.StatusRevoked
	if changed {
		c.Status = models.StatusRevoked
		c.Modified = requestcontext.Now(ctx)
	}
	out := *c
	return &out, changed, nil
}

func (s *InMemory) SetDownloadURL(ctx context.Context, id int64, url string) (*models.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c.DownloadURL = url
	c.Modified = requestcontext.Now(ctx)
	out := *c
	return &out, nil
}

// Delete removes the credential and its attributes.
func (s *InMemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.creds, id)
	delete(s.byKey, awardKey{username: c.Username, ref: c.Credential})
	delete(s.byUUID, c.UUID)
	delete(s.attrs, id)
	return nil
}

func (s *InMemory) AddAttribute(ctx context.Context, attr *models.Attribute) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[attr.UserCredentialID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextAttrID++
	now := requestcontext.Now(ctx)
	attr.ID = s.nextAttrID
	attr.Created = now
	attr.Modified = now
	stored := *attr
	s.attrs[attr.UserCredentialID] = append(s.attrs[attr.UserCredentialID], &stored)
	return nil
}

// ListAttributes returns a credential's attributes in insertion order. An
// empty namespace matches all.
func (s *InMemory) ListAttributes(ctx context.Context, credentialID int64, namespace string) ([]*models.Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Attribute{}
	for _, a := range s.attrs[credentialID] {
		if namespace == "" || a.Namespace == namespace {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AttributeCount reports the number of attribute rows across all credentials.
func (s *InMemory) AttributeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, as := range s.attrs {
		n += len(as)
	}
	return n
}
