package services

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/normalize"
	"inventory-dashboard/internal/workbook"
)

const (
	maxWorkers      = 8
	cacheVersion    = "v1"
	defaultCacheDir = ".cache"
)

var tracer = otel.Tracer("inventory-dashboard/services")

// ErrInvalidFilters wraps every filter validation failure.
var ErrInvalidFilters = errors.New("invalid filters")

// LoadRecorder observes workbook loads. Implemented by the metrics registry.
type LoadRecorder interface {
	ObserveLoad(source string, records int, duration time.Duration, err error)
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

// WithCacheDir sets where normalized datasets are cached. An empty dir
// disables the cache.
func WithCacheDir(dir string) Option {
	return func(a *Analytics) { a.cacheDir = dir }
}

func WithRecorder(r LoadRecorder) Option {
	return func(a *Analytics) { a.recorder = r }
}

// Analytics holds the current dataset snapshot. Loads swap the snapshot;
// every query is a pure computation over (snapshot, filters).
type Analytics struct {
	mu         sync.RWMutex
	dataset    *models.Dataset
	sheets     []normalize.SheetStats
	normalizer *normalize.Normalizer
	layoutKey  string
	cacheDir   string
	recorder   LoadRecorder
	loads      atomic.Int64
	logger     *slog.Logger
}

func NewAnalytics(layout normalize.Layout, opts ...Option) (*Analytics, error) {
	n, err := normalize.New(layout)
	if err != nil {
		return nil, err
	}
	key, err := layoutKey(layout)
	if err != nil {
		return nil, err
	}

	a := &Analytics{
		dataset:    &models.Dataset{},
		normalizer: n,
		layoutKey:  key,
		cacheDir:   defaultCacheDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "analytics")
	return a, nil
}

// SetDataset replaces the snapshot with an already normalized dataset.
func (a *Analytics) SetDataset(ds *models.Dataset) {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	if ds.LoadedAt.IsZero() {
		ds.LoadedAt = time.Now()
	}

	a.mu.Lock()
	a.dataset = ds
	a.sheets = nil
	a.mu.Unlock()
}

func (a *Analytics) snapshot() *models.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset
}

// Dataset returns the current snapshot. Callers must not modify it.
func (a *Analytics) Dataset() *models.Dataset {
	return a.snapshot()
}

// Pinned returns a query view fixed to the current snapshot. Loads into the
// parent do not affect it, so every result it produces belongs to the same
// dataset ID.
func (a *Analytics) Pinned() *Analytics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Analytics{
		dataset:    a.dataset,
		sheets:     a.sheets,
		normalizer: a.normalizer,
		layoutKey:  a.layoutKey,
		recorder:   a.recorder,
		logger:     a.logger,
	}
}

// LoadWorkbook decodes, normalizes and installs the workbook at path. A
// cached dataset for the same path and modification time is reused.
func (a *Analytics) LoadWorkbook(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "analytics.LoadWorkbook")
	defer span.End()
	span.SetAttributes(attribute.String("workbook.path", path))

	info, err := os.Stat(path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("stat workbook: %w", err)
	}

	if cached, err := a.loadFromCache(path); err == nil && cached.ModTime.Equal(info.ModTime()) {
		a.install(cached.Dataset, cached.Sheets)
		a.logger.Info("loaded from cache", "path", path, "records", cached.Dataset.RecordCount())
		span.SetAttributes(attribute.Bool("workbook.cached", true))
		return nil
	}

	start := time.Now()
	a.logger.Info("processing workbook", "path", path)

	wb, err := workbook.Open(ctx, path)
	if err == nil {
		err = a.ingest(wb, path, start)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := a.saveToCache(path, info.ModTime()); err != nil {
		a.logger.Warn("failed to save cache", "error", err)
	}
	return nil
}

// LoadWorkbookReader decodes and installs a workbook read from r, such as
// an upload. name is recorded as the dataset source.
func (a *Analytics) LoadWorkbookReader(ctx context.Context, name string, r io.Reader) error {
	ctx, span := tracer.Start(ctx, "analytics.LoadWorkbookReader")
	defer span.End()
	span.SetAttributes(attribute.String("workbook.source", name))

	start := time.Now()
	wb, err := workbook.Read(ctx, r)
	if err == nil {
		err = a.ingest(wb, name, start)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (a *Analytics) ingest(wb *workbook.Workbook, source string, start time.Time) error {
	ds, stats, err := a.normalizer.Normalize(wb)
	if err != nil {
		a.observe(source, 0, start, err)
		return fmt.Errorf("normalize %s: %w", source, err)
	}

	ds.ID = uuid.NewString()
	ds.Source = source
	ds.LoadedAt = time.Now()
	a.install(ds, stats)

	for _, st := range stats {
		a.logger.Debug("sheet normalized",
			"sheet", st.Sheet,
			"role", st.Role,
			"rows", st.Rows,
			"kept", st.Kept,
			"skipped", st.Skipped,
			"duplicates", st.Duplicates,
		)
		if st.Duplicates > 0 {
			a.logger.Warn("duplicate keys replaced", "sheet", st.Sheet, "duplicates", st.Duplicates)
		}
	}

	duration := time.Since(start)
	a.observe(source, ds.RecordCount(), start, nil)
	a.logger.Info("workbook processing complete",
		"source", source,
		"dataset_id", ds.ID,
		"records", ds.RecordCount(),
		"periods", len(ds.Calendar),
		"duration", duration,
	)
	return nil
}

func (a *Analytics) install(ds *models.Dataset, stats []normalize.SheetStats) {
	a.mu.Lock()
	a.dataset = ds
	a.sheets = stats
	a.mu.Unlock()
	a.loads.Add(1)
}

func (a *Analytics) observe(source string, records int, start time.Time, err error) {
	if a.recorder != nil {
		a.recorder.ObserveLoad(source, records, time.Since(start), err)
	}
}

// layoutKey fingerprints the layout a dataset is normalized under. A cached
// dataset is only valid for the layout that produced it.
func layoutKey(layout normalize.Layout) (string, error) {
	b, err := yaml.Marshal(layout)
	if err != nil {
		return "", fmt.Errorf("encode layout: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8]), nil
}

type cacheEntry struct {
	Version string
	Layout  string
	ModTime time.Time
	Dataset *models.Dataset
	Sheets  []normalize.SheetStats
}

func (a *Analytics) cacheFilename(path string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(path)
	return filepath.Join(a.cacheDir, fmt.Sprintf("%s_%s_%s.gob", name, a.layoutKey, cacheVersion))
}

func (a *Analytics) saveToCache(path string, modTime time.Time) error {
	if a.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(a.cacheFilename(path))
	if err != nil {
		return err
	}
	defer file.Close()

	a.mu.RLock()
	entry := cacheEntry{Version: cacheVersion, Layout: a.layoutKey, ModTime: modTime, Dataset: a.dataset, Sheets: a.sheets}
	a.mu.RUnlock()

	return gob.NewEncoder(file).Encode(entry)
}

func (a *Analytics) loadFromCache(path string) (*cacheEntry, error) {
	if a.cacheDir == "" {
		return nil, os.ErrNotExist
	}

	file, err := os.Open(a.cacheFilename(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entry cacheEntry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, err
	}
	if entry.Version != cacheVersion || entry.Layout != a.layoutKey || entry.Dataset == nil {
		return nil, fmt.Errorf("stale cache entry")
	}
	return &entry, nil
}

// Stats reports the loaded snapshot for monitoring.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ds := a.dataset
	return map[string]any{
		"dataset_id":     ds.ID,
		"source":         ds.Source,
		"loaded_at":      ds.LoadedAt,
		"loads":          a.loads.Load(),
		"record_count":   ds.RecordCount(),
		"periods":        ds.Calendar.Names(),
		"markets":        len(ds.MarketUnits),
		"sku_rows":       len(ds.SkuUnits),
		"inventory_rows": len(ds.SkuInventory),
		"sheets":         a.sheets,
	}
}
