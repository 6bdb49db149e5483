package upload

import (
	"context"
	"os"
	"time"

	"github.com/disintegration/imaging"

	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability/metrics"
)

// inspect downloads a completed upload and records its pixel dimensions.
// Failures are logged only; formats imaging cannot decode, such as HEIC,
// simply keep no dimensions.
func (s *Service) inspect(ctx context.Context, asset *entities.Asset) {
	start := time.Now()
	log := s.log.WithContext(ctx).With(logger.String("asset_id", asset.ID.String()))

	width, height, err := s.dimensions(ctx, asset)
	if err != nil {
		s.recorder.RecordOperation(metrics.OpUploadInspect, metrics.StatusError)
		log.Debug("image inspection skipped", logger.Error(err), logger.String("mime_type", asset.MimeType))
		return
	}

	if err := s.store.Uploads.SetAssetDimensions(ctx, asset.ID, width, height); err != nil {
		s.recorder.RecordOperation(metrics.OpUploadInspect, metrics.StatusError)
		log.Warn("failed to store image dimensions", logger.Error(err))
		return
	}

	s.recorder.RecordOperation(metrics.OpUploadInspect, metrics.StatusSuccess)
	s.recorder.RecordDuration(metrics.OpUploadInspect, time.Since(start).Seconds())
	log.Debug("image inspected", logger.Int("width", width), logger.Int("height", height))
}

func (s *Service) dimensions(ctx context.Context, asset *entities.Asset) (width, height int, err error) {
	tmp, err := os.CreateTemp(s.cfg.TempDir, "handscan-upload-*")
	if err != nil {
		return 0, 0, err
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(path) }()

	if _, err := s.storage.Download(ctx, asset.StorageKey, path); err != nil {
		return 0, 0, err
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, err
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
