package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/errors"
)

// ClientRepository provides access to the clients table.
type ClientRepository interface {
	// GetByInstallID returns ErrClientNotFound if no client exists.
	GetByInstallID(ctx context.Context, installID string) (*entities.Client, error)

	// GetOrCreate returns the client for installID, creating it when absent.
	// created reports whether this call inserted the row.
	GetOrCreate(ctx context.Context, installID, label string) (client *entities.Client, created bool, err error)

	// Save persists the label and last seen time of an existing client.
	Save(ctx context.Context, client *entities.Client) error

	// Touch updates last_seen_at without loading the row.
	Touch(ctx context.Context, installID string, now time.Time) error

	// Delete removes the client and, by cascade, its sessions and hands.
	Delete(ctx context.Context, installID string) error
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) GetByInstallID(ctx context.Context, installID string) (*entities.Client, error) {
	var client entities.Client
	err := r.db.WithContext(ctx).Where("install_id = ?", installID).First(&client).Error
	if err != nil {
		return nil, translate(err, ErrClientNotFound)
	}
	return &client, nil
}

func (r *clientRepository) GetOrCreate(ctx context.Context, installID, label string) (*entities.Client, bool, error) {
	client, err := r.GetByInstallID(ctx, installID)
	if err == nil {
		return client, false, nil
	}
	if !errors.Is(err, ErrClientNotFound) {
		return nil, false, err
	}

	client = &entities.Client{
		InstallID:  installID,
		Label:      label,
		LastSeenAt: time.Now(),
	}
	createErr := r.db.WithContext(ctx).Create(client).Error
	if createErr != nil {
		// Another request may have created it concurrently.
		existing, findErr := r.GetByInstallID(ctx, installID)
		if findErr != nil {
			return nil, false, createErr
		}
		return existing, false, nil
	}

	return client, true, nil
}

func (r *clientRepository) Save(ctx context.Context, client *entities.Client) error {
	return r.db.WithContext(ctx).Model(&entities.Client{}).
		Where("install_id = ?", client.InstallID).
		Updates(map[string]any{
			"label":        client.Label,
			"last_seen_at": client.LastSeenAt,
		}).Error
}

func (r *clientRepository) Touch(ctx context.Context, installID string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&entities.Client{}).
		Where("install_id = ?", installID).
		Update("last_seen_at", now).Error
}

func (r *clientRepository) Delete(ctx context.Context, installID string) error {
	result := r.db.WithContext(ctx).Where("install_id = ?", installID).Delete(&entities.Client{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}
