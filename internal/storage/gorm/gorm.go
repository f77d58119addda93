// Package gormstorage implements the storage.Backend interface using GORM,
// with a write-behind queue drained by a background writer goroutine.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/internal/model"
	"github.com/lookaround-map/viewer/internal/model/convert"
	"github.com/lookaround-map/viewer/internal/queue"
	"github.com/lookaround-map/viewer/pkg/core"
)

// DefaultWriteInterval is how often queued panoramas are written.
const DefaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// WriteInterval overrides DefaultWriteInterval when positive.
	WriteInterval time.Duration
}

// Backend implements storage.Backend on a GORM database. Saves are queued and
// written in batches; reads flush the queue first.
type Backend struct {
	deps    Dependencies
	pending *queue.Queue[string, model.Panorama]

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:    deps,
		pending: queue.New[string, model.Panorama](),
	}
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("no database connection")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	b.startDBWriter()
	return nil
}

// Close stops the writer goroutine and writes anything still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return b.Flush(context.Background())
}

// Pending returns the number of queued, unwritten panoramas.
func (b *Backend) Pending() int {
	return b.pending.Len()
}

// SavePanoramas queues panoramas for the next write. A panorama queued twice
// before a write is stored once, with its latest values. Panoramas with an
// unprojectable location are skipped and reported.
func (b *Backend) SavePanoramas(_ context.Context, panos []core.Panorama) error {
	var errs []error
	for _, p := range panos {
		row, err := convert.CoreToPanorama(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.pending.Push(p.ID, row)
	}
	return errors.Join(errs...)
}

// Flush writes all queued panoramas, replacing rows with the same ID.
func (b *Backend) Flush(ctx context.Context) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.pending.Empty() {
		return nil
	}
	if b.deps.DB == nil {
		return fmt.Errorf("no database connection")
	}
	items := b.pending.GetAndEmpty()

	start := time.Now()
	err := b.deps.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(items, 500).Error
	if err != nil {
		// put them back so the next cycle retries
		for _, it := range items {
			if _, queued := b.pending.Get(it.PanoID); !queued {
				b.pending.Push(it.PanoID, it)
			}
		}
		return fmt.Errorf("failed to write panoramas: %w", err)
	}

	b.deps.Logger.Debug("Wrote panoramas",
		"count", len(items),
		"duration", time.Since(start))
	return nil
}

// Closest returns the cached panoramas within radius, nearest first.
func (b *Backend) Closest(ctx context.Context, lat, lon, radius float64) ([]core.Panorama, error) {
	rows, err := b.within(ctx, lat, lon, radius)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}

	center := geo.MercatorXY(lon, lat)
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Hypot(rows[i].X-center.X, rows[i].Y-center.Y) <
			math.Hypot(rows[j].X-center.X, rows[j].Y-center.Y)
	})
	return convert.PanoramasToCore(rows), nil
}

// Neighbors returns every cached panorama within radius.
func (b *Backend) Neighbors(ctx context.Context, lat, lon, radius float64) ([]core.Panorama, error) {
	rows, err := b.within(ctx, lat, lon, radius)
	if err != nil {
		return nil, err
	}
	return convert.PanoramasToCore(rows), nil
}

func (b *Backend) within(ctx context.Context, lat, lon, radius float64) ([]model.Panorama, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("no database connection")
	}
	if err := b.Flush(ctx); err != nil {
		b.deps.Logger.Warn("Reading with unwritten panoramas", "error", err)
	}

	lo, hi := geo.MercatorBounds(lon, lat, radius)
	var rows []model.Panorama
	err := b.deps.DB.WithContext(ctx).
		Where("x BETWEEN ? AND ? AND y BETWEEN ? AND ?", lo.X, hi.X, lo.Y, hi.Y).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query panoramas: %w", err)
	}
	return rows, nil
}

// startDBWriter starts the background goroutine that periodically drains the queue into the DB.
func (b *Backend) startDBWriter() {
	ticker := time.NewTicker(b.deps.WriteInterval)

	go func() {
		defer close(b.done)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				if err := b.Flush(context.Background()); err != nil {
					b.deps.Logger.Error("Failed to write panoramas", "error", err)
				}
			}
		}
	}()
}
