// Package drive stores which Google Drive account and root folder each user's attachments go to.
package drive

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/messaging"
)

const (
	MsgUnavailable      = "No disponible en modo demo."
	msgMissingFields    = "Faltan datos para guardar la conexion."
	msgSessionInvalid   = "Sesion invalida. Volve a iniciar sesion."
	msgSaveFailed       = "No se pudo guardar la conexion con Drive."
	msgDisconnectFailed = "No se pudo desconectar Drive."
)

type Service struct {
	conns    repository.DriveConnectionRepository
	patients repository.PatientRepository
	demo     bool
	events   event.Emitter
	logger   zerolog.Logger
}

func NewService(repos repository.Repositories, demo bool, events event.Emitter, logger zerolog.Logger) *Service {
	if events == nil {
		events = event.Nop{}
	}
	return &Service{
		conns:    repos.DriveConnections,
		patients: repos.Patients,
		demo:     demo,
		events:   events,
		logger:   logger.With().Str("component", "drive").Logger(),
	}
}

// Get returns the caller's connection, or nil when there is none, in demo mode, or when the
// session carries no user id. A failed lookup is logged and treated as not connected.
func (s *Service) Get(ctx context.Context, ownerID string) *model.DriveConnection {
	if s.demo || ownerID == "" {
		return nil
	}
	conn, err := s.conns.Get(ctx, ownerID)
	if err != nil {
		if !errors.IsKind(err, errors.KindNotFound) {
			s.logger.Error().Err(err).Msg("could not load drive connection")
		}
		return nil
	}
	return conn
}

func (s *Service) Save(ctx context.Context, ownerID, connectedEmail, rootFolderID string) (*model.DriveConnection, error) {
	if s.demo {
		return nil, errors.Unavailable(MsgUnavailable)
	}
	connectedEmail = strings.TrimSpace(connectedEmail)
	rootFolderID = strings.TrimSpace(rootFolderID)
	if connectedEmail == "" || rootFolderID == "" {
		return nil, errors.Validation(msgMissingFields)
	}
	if ownerID == "" {
		return nil, errors.Unauthorized(msgSessionInvalid)
	}

	conn := &model.DriveConnection{
		OwnerID:        ownerID,
		ConnectedEmail: &connectedEmail,
		RootFolderID:   &rootFolderID,
	}
	if err := s.conns.Upsert(ctx, conn); err != nil {
		return nil, errors.Fallback(err, msgSaveFailed)
	}
	s.events.Emit(ctx, messaging.DriveConnected, ownerID, ownerID, nil)
	return conn, nil
}

// Disconnect forgets the connection and unlinks every patient folder of the owner. Failing to
// unlink the folders is logged only.
func (s *Service) Disconnect(ctx context.Context, ownerID string) error {
	if s.demo {
		return errors.Unavailable(MsgUnavailable)
	}
	if ownerID == "" {
		return errors.Unauthorized(msgSessionInvalid)
	}
	if err := s.conns.Delete(ctx, ownerID); err != nil {
		return errors.Fallback(err, msgDisconnectFailed)
	}
	if err := s.patients.ClearDriveFolders(ctx, ownerID); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("could not clear patient drive folders")
	}
	s.events.Emit(ctx, messaging.DriveDisconnected, ownerID, ownerID, nil)
	return nil
}
