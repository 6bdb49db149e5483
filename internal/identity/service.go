// Package identity manages anonymous client installs. A client is known
// only by the install id the app generates on first launch.
package identity

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/guard"
	"github.com/handscan/handscan/internal/logger"
)

// CodeInvalidClient is returned for a malformed install id or label.
const CodeInvalidClient = "invalid_client"

const (
	MaxInstallIDLength = 64
	MaxLabelLength     = 120
)

// Service implements client identification.
type Service struct {
	clients repository.ClientRepository
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(clients repository.ClientRepository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global().Module("identity")
	}
	return &Service{clients: clients, log: log, now: time.Now}
}

// Identify returns the client for installID, creating it when absent.
// For an existing client it records the visit and, when label is not
// empty, replaces the label.
func (s *Service) Identify(ctx context.Context, installID, label string) (*entities.Client, bool, error) {
	installID = strings.TrimSpace(installID)
	if err := validate(installID, label); err != nil {
		return nil, false, err
	}

	client, created, err := s.clients.GetOrCreate(ctx, installID, label)
	if err != nil {
		return nil, false, databaseError(err, "identify client")
	}
	if created {
		s.log.WithContext(ctx).Info("client registered", logger.String("install_id", installID))
		return client, true, nil
	}

	client.Touch(s.now())
	if label != "" {
		client.Label = label
	}
	if err := s.clients.Save(ctx, client); err != nil {
		return nil, false, databaseError(err, "update client")
	}
	return client, false, nil
}

// Get returns the client or a client_not_found error.
func (s *Service) Get(ctx context.Context, installID string) (*entities.Client, error) {
	client, err := s.clients.GetByInstallID(ctx, installID)
	if errors.Is(err, repository.ErrClientNotFound) {
		return nil, notFound(installID)
	}
	if err != nil {
		return nil, databaseError(err, "load client")
	}
	return client, nil
}

// Delete removes the client with all its uploads, hands and detections.
func (s *Service) Delete(ctx context.Context, installID string) error {
	err := s.clients.Delete(ctx, installID)
	if errors.Is(err, repository.ErrClientNotFound) {
		return notFound(installID)
	}
	if err != nil {
		return databaseError(err, "delete client")
	}
	s.log.WithContext(ctx).Info("client deleted", logger.String("install_id", installID))
	return nil
}

// Touch records a request by installID. Failures are logged and otherwise
// ignored.
func (s *Service) Touch(ctx context.Context, installID string) {
	if err := s.clients.Touch(ctx, installID, s.now()); err != nil {
		s.log.WithContext(ctx).Debug("failed to update last seen",
			logger.String("install_id", installID),
			logger.Error(err))
	}
}

func validate(installID, label string) error {
	switch {
	case installID == "":
		return invalid("install_id is required")
	case utf8.RuneCountInString(installID) > MaxInstallIDLength:
		return invalid("install_id must be at most 64 characters")
	case utf8.RuneCountInString(label) > MaxLabelLength:
		return invalid("label must be at most 120 characters")
	}
	return nil
}

func invalid(message string) error {
	return errors.Newf("%s", message).
		Component("identity").
		Category(errors.CategoryValidation).
		Code(CodeInvalidClient).
		Build()
}

func notFound(installID string) error {
	return guard.NotFound(guard.CodeClientNotFound, "Client with install_id '%s' not found", installID)
}

func databaseError(err error, operation string) error {
	return errors.New(err).
		Component("identity").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
