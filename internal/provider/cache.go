package provider

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/lookaround-map/viewer/internal/storage"
	"github.com/lookaround-map/viewer/pkg/core"
)

// Source is what CachedSource wraps; *Client implements it.
type Source interface {
	Closest(ctx context.Context, lat, lon float64) ([]core.Panorama, error)
	Neighbors(ctx context.Context, lat, lon float64) ([]core.Panorama, error)
	FetchFace(ctx context.Context, pano core.Panorama, face core.FaceIndex, quality core.Quality, progress func(float64)) (image.Image, error)
}

// CachedSource writes panorama metadata through to a storage backend and
// answers from it when the provider fails. Decoded face images are kept in
// a cost-bounded cache.
type CachedSource struct {
	src     Source
	store   storage.Backend
	images  *ristretto.Cache[string, image.Image]
	radius  float64
	logger  *slog.Logger
	metrics *metrics
}

// NewCachedSource wraps src. maxCost bounds the image cache in bytes;
// radius is the storage search radius in meters.
func NewCachedSource(src Source, store storage.Backend, maxCost int64, radius float64, logger *slog.Logger) (*CachedSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxCost <= 0 {
		return nil, fmt.Errorf("image cache max cost must be positive, got %d", maxCost)
	}

	images, err := ristretto.NewCache(&ristretto.Config[string, image.Image]{
		// about one counter per 16 KiB of cached pixels
		NumCounters: max(maxCost>>14, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}

	m, err := newMetrics()
	if err != nil {
		images.Close()
		return nil, err
	}

	return &CachedSource{
		src:     src,
		store:   store,
		images:  images,
		radius:  radius,
		logger:  logger,
		metrics: m,
	}, nil
}

// Closest asks the provider and stores the result. When the provider fails,
// the stored panoramas within the radius are returned instead.
func (s *CachedSource) Closest(ctx context.Context, lat, lon float64) ([]core.Panorama, error) {
	panos, err := s.src.Closest(ctx, lat, lon)
	if err == nil {
		s.save(ctx, panos)
		return panos, nil
	}

	cached, cacheErr := s.store.Closest(ctx, lat, lon, s.radius)
	if cacheErr != nil {
		if errors.Is(cacheErr, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w (offline cache: %v)", err, cacheErr)
	}
	s.metrics.offline.Add(ctx, 1)
	s.logger.Warn("Provider unavailable, using cached panoramas",
		"error", err,
		"count", len(cached))
	return cached, nil
}

// Neighbors asks the provider and stores the result, falling back to storage
// like Closest. An empty cached result is returned as such.
func (s *CachedSource) Neighbors(ctx context.Context, lat, lon float64) ([]core.Panorama, error) {
	panos, err := s.src.Neighbors(ctx, lat, lon)
	if err == nil {
		s.save(ctx, panos)
		return panos, nil
	}

	cached, cacheErr := s.store.Neighbors(ctx, lat, lon, s.radius)
	if cacheErr != nil {
		return nil, fmt.Errorf("%w (offline cache: %v)", err, cacheErr)
	}
	s.metrics.offline.Add(ctx, 1)
	s.logger.Warn("Provider unavailable, using cached neighbors",
		"error", err,
		"count", len(cached))
	return cached, nil
}

// FetchFace returns a cached image when one is held for the same panorama,
// face and quality; otherwise it fetches and caches it.
func (s *CachedSource) FetchFace(ctx context.Context, pano core.Panorama, face core.FaceIndex, quality core.Quality, progress func(float64)) (image.Image, error) {
	key := imageKey(pano.ID, face, quality)
	if img, ok := s.images.Get(key); ok {
		s.metrics.imageHits.Add(ctx, 1)
		if progress != nil {
			progress(1)
		}
		return img, nil
	}

	s.metrics.imageMisses.Add(ctx, 1)
	img, err := s.src.FetchFace(ctx, pano, face, quality, progress)
	if err != nil {
		return nil, err
	}
	s.images.Set(key, img, imageCost(img))
	return img, nil
}

// Wait blocks until pending image cache writes are visible.
func (s *CachedSource) Wait() {
	s.images.Wait()
}

// Close releases the image cache.
func (s *CachedSource) Close() {
	s.images.Close()
}

func (s *CachedSource) save(ctx context.Context, panos []core.Panorama) {
	if len(panos) == 0 {
		return
	}
	if err := s.store.SavePanoramas(ctx, panos); err != nil {
		s.logger.Warn("Failed to cache panoramas", "error", err)
	}
}

func imageKey(panoID string, face core.FaceIndex, quality core.Quality) string {
	return fmt.Sprintf("%s/%d/%d", panoID, face, quality)
}

// imageCost approximates the decoded size as four bytes per pixel.
func imageCost(img image.Image) int64 {
	b := img.Bounds()
	return max(int64(b.Dx())*int64(b.Dy())*4, 1)
}
