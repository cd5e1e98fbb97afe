package archive

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/metrics"
	"github.com/silviaroy/upscalerd/internal/policy"
)

// Service stores completed outputs under results/<user>/<job>.
type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

func Key(userID, jobID string, kind policy.MediaKind) string {
	ext := ".jpg"
	if kind == policy.KindVideo {
		ext = ".mp4"
	}
	return fmt.Sprintf("results/%s/%s%s", userID, jobID, ext)
}

func contentType(kind policy.MediaKind) string {
	if kind == policy.KindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

func (s *Service) Store(ctx context.Context, userID, jobID, outputPath string, kind policy.MediaKind) error {
	f, err := os.Open(outputPath)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	return s.storage.Upload(ctx, Key(userID, jobID, kind), f, contentType(kind), info.Size())
}

// SweepExpired deletes archived results older than retain and returns
// the number of objects removed. Delete failures are logged and the
// sweep moves on; the next pass picks them up.
func (s *Service) SweepExpired(ctx context.Context, retain time.Duration) (int, error) {
	log := logger.FromContext(ctx)
	cutoff := time.Now().Add(-retain)

	objects, err := s.storage.List(ctx, "results/")
	if err != nil {
		return 0, fmt.Errorf("list archive: %w", err)
	}

	removed := 0
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, obj.Key); err != nil {
			log.Warn("deleting expired archive object", "key", obj.Key, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ArchiveSweptTotal.Add(float64(removed))
		log.Info("archive retention sweep", "removed", removed)
	}
	return removed, nil
}
