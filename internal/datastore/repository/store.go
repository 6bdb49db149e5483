package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/errors"
)

// Store bundles the repositories that share one database handle.
type Store struct {
	db *gorm.DB

	Clients     ClientRepository
	Uploads     UploadRepository
	Hands       HandRepository
	Detections  DetectionRepository
	Corrections CorrectionRepository
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Clients:     NewClientRepository(db),
		Uploads:     NewUploadRepository(db),
		Hands:       NewHandRepository(db),
		Detections:  NewDetectionRepository(db),
		Corrections: NewCorrectionRepository(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside a database transaction. fn receives a Store
// bound to the transaction; returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// translate maps GORM errors to repository sentinels. notFound is returned
// for gorm.ErrRecordNotFound.
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return err
	}
}
