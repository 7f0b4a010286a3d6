// Package access manages the allow list of emails that may sign in, sign up or reset a password.
// Only the master account edits it.
package access

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/messaging"
)

const (
	MsgListFailed    = "No se pudo cargar la lista. Revisá Supabase."
	msgInvalidEmail  = "Ingresá un email válido."
	msgDuplicate     = "Ese email ya existe en la lista."
	msgSaveFailed    = "No pudimos guardar el email."
	msgInvalidID     = "Email inválido."
	msgUpdateFailed  = "No pudimos actualizar el email."
	msgDeleteFailed  = "No pudimos eliminar el email."
	msgLookupFailed  = "Falta configurar el control de emails habilitados en Supabase."
	defaultLookupTTL = 30 * time.Second
)

type Service struct {
	repo   repository.AllowedEmailRepository
	cache  *cache.Cache
	events event.Emitter
}

// NewService caches IsEnabled answers for ttl. Any change to the list flushes the cache.
func NewService(repo repository.AllowedEmailRepository, events event.Emitter, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultLookupTTL
	}
	if events == nil {
		events = event.Nop{}
	}
	return &Service{
		repo:   repo,
		cache:  cache.New(ttl, 2*ttl),
		events: events,
	}
}

// List returns the allow list ordered by email.
func (s *Service) List(ctx context.Context) ([]*model.AllowedEmail, error) {
	emails, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Fallback(err, MsgListFailed)
	}
	if emails == nil {
		emails = []*model.AllowedEmail{}
	}
	return emails, nil
}

func (s *Service) Add(ctx context.Context, actorID, email string, enabled bool) (*model.AllowedEmail, error) {
	email = model.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Validation(msgInvalidEmail).WithField("email", "email")
	}
	entry := &model.AllowedEmail{Email: email, Enabled: enabled}
	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.IsKind(err, errors.KindConflict) {
			return nil, errors.Conflict(msgDuplicate, err)
		}
		return nil, errors.Fallback(err, msgSaveFailed)
	}
	s.cache.Flush()
	s.events.Emit(ctx, messaging.AllowedEmailAdded, entry.ID, actorID, nil)
	return entry, nil
}

func (s *Service) SetEnabled(ctx context.Context, actorID, id string, enabled bool) error {
	if strings.TrimSpace(id) == "" {
		return errors.Validation(msgInvalidID)
	}
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return errors.Fallback(err, msgUpdateFailed)
	}
	s.cache.Flush()
	s.events.Emit(ctx, messaging.AllowedEmailToggled, id, actorID, map[string]string{
		"enabled": strconv.FormatBool(enabled),
	})
	return nil
}

func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Validation(msgInvalidID)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Fallback(err, msgDeleteFailed)
	}
	s.cache.Flush()
	s.events.Emit(ctx, messaging.AllowedEmailDeleted, id, actorID, nil)
	return nil
}

// IsEnabled reports whether email is on the list and enabled. Errors are never cached.
func (s *Service) IsEnabled(ctx context.Context, email string) (bool, error) {
	key := model.NormalizeEmail(email)
	if v, ok := s.cache.Get(key); ok {
		return v.(bool), nil
	}
	enabled, err := s.repo.IsEnabled(ctx, key)
	if err != nil {
		return false, errors.Internal(msgLookupFailed, err)
	}
	s.cache.SetDefault(key, enabled)
	return enabled, nil
}
