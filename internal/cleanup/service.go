// Package cleanup sweeps stored resources past their retention window
package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store lists and removes stale resources. database.Interface satisfies it.
type Store interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*database.Resource, error)
	DeleteStale(ctx context.Context, cutoff time.Time, resources []*database.Resource) (int, error)
}

// Archiver uploads one JSONL archive and returns its key.
type Archiver interface {
	UploadArchive(ctx context.Context, name string, data io.Reader) (string, error)
}

// Notifier announces finished sweeps. queue.Publisher satisfies it.
type Notifier interface {
	PublishSweep(ctx context.Context, msg *queue.SweepNotification) error
}

// Evictor drops cached copies of deleted resources.
type Evictor interface {
	Invalidate(ctx context.Context, ref cache.Ref) (int, error)
}

// Result describes one sweep
type Result struct {
	RunID       string        `json:"run_id"`
	Cutoff      time.Time     `json:"cutoff"`
	Scanned     int           `json:"scanned"`
	Deleted     int           `json:"deleted"`
	Archived    int           `json:"archived"`
	Evicted     int           `json:"evicted"`
	ArchiveKeys []string      `json:"archive_keys,omitempty"`
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
}

// Service runs retention sweeps on an interval
type Service struct {
	store    Store
	archiver Archiver
	notifier Notifier
	evictor  Evictor
	config   Config
	log      *logrus.Entry
	now      func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithArchiver archives each batch before it is deleted.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithNotifier publishes a notification after every sweep.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithEvictor removes deleted resources from the cache.
func WithEvictor(e Evictor) Option {
	return func(s *Service) { s.evictor = e }
}

// NewService creates a sweeper over store
func NewService(store Store, config Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		config: config.withDefaults(),
		log:    telemetry.Component("cleanup"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a sweep immediately and then every Interval until ctx is done.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"dry_run":   s.config.DryRun,
		"interval":  s.config.Interval.String(),
		"retention": s.config.Retention.String(),
		"archive":   s.archiving(),
	}).Info("Retention sweeper started")

	s.runLogged(ctx)

	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx)
		case <-ctx.Done():
			s.log.Info("Retention sweeper stopped")
			return
		}
	}
}

func (s *Service) runLogged(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.log.WithError(err).Error("Sweep failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"scanned":  res.Scanned,
		"deleted":  res.Deleted,
		"archived": res.Archived,
		"duration": res.Duration.String(),
	}).Info("Sweep completed")
}

func (s *Service) archiving() bool {
	return s.config.Archive && s.archiver != nil
}

// RunOnce performs a single sweep. Stale resources are taken oldest first in
// batches. A batch is deleted only after its archive upload succeeds.
func (s *Service) RunOnce(ctx context.Context) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "cleanup.sweep")
	defer span.End()

	start := s.now()
	res := &Result{
		RunID:  uuid.NewString(),
		Cutoff: start.Add(-s.config.Retention).UTC(),
		DryRun: s.config.DryRun,
	}

	var err error
	if s.config.DryRun {
		err = s.scan(ctx, res)
	} else {
		err = s.sweep(ctx, res)
	}
	res.Duration = s.now().Sub(start)

	telemetry.RecordSwept("scanned", res.Scanned)
	telemetry.RecordSwept("archived", res.Archived)
	telemetry.RecordSwept("deleted", res.Deleted)

	if err != nil {
		telemetry.RecordSweepRun("error")
		telemetry.RecordError(ctx, err)
		// Partial progress is still announced.
		s.notify(ctx, res)
		return res, err
	}

	if res.DryRun {
		telemetry.RecordSweepRun("dry_run")
	} else {
		telemetry.RecordSweepRun("success")
	}
	s.notify(ctx, res)
	return res, nil
}

// scan counts what a sweep would remove without touching anything.
func (s *Service) scan(ctx context.Context, res *Result) error {
	stale, err := s.store.ListStale(ctx, res.Cutoff, s.config.BatchSize*s.config.MaxBatches)
	if err != nil {
		return fmt.Errorf("failed to list stale resources: %w", err)
	}
	res.Scanned = len(stale)

	for _, r := range stale {
		s.log.WithFields(logrus.Fields{
			"endpoint":    r.Endpoint,
			"resource_id": r.ResourceID,
			"updated_at":  r.UpdatedAt,
		}).Debug("DRY RUN: would delete resource")
	}
	return nil
}

func (s *Service) sweep(ctx context.Context, res *Result) error {
	for batch := 0; batch < s.config.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		stale, err := s.store.ListStale(ctx, res.Cutoff, s.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to list stale resources: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}
		res.Scanned += len(stale)

		if s.archiving() {
			key, err := s.archive(ctx, fmt.Sprintf("%s-%03d", res.RunID, batch), stale)
			if err != nil {
				return fmt.Errorf("batch %d: %w", batch, err)
			}
			res.Archived += len(stale)
			res.ArchiveKeys = append(res.ArchiveKeys, key)
		}

		deleted, err := s.store.DeleteStale(ctx, res.Cutoff, stale)
		if err != nil {
			return fmt.Errorf("batch %d: failed to delete: %w", batch, err)
		}
		res.Deleted += deleted
		res.Evicted += s.evict(ctx, stale)

		// Nothing deleted means every row was rewritten since it was listed,
		// and the next listing would return the same rows.
		if len(stale) < s.config.BatchSize || deleted == 0 {
			return nil
		}
	}
	return nil
}

// archive writes resources as JSON lines and uploads them.
func (s *Service) archive(ctx context.Context, name string, resources []*database.Resource) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range resources {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("failed to encode %s/%s: %w", r.Endpoint, r.ResourceID, err)
		}
	}

	key, err := s.archiver.UploadArchive(ctx, name, &buf)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"key":       key,
		"resources": len(resources),
	}).Info("Archived stale resources")
	return key, nil
}

func (s *Service) evict(ctx context.Context, resources []*database.Resource) int {
	if s.evictor == nil {
		return 0
	}
	removed := 0
	for _, r := range resources {
		n, err := s.evictor.Invalidate(ctx, cache.Ref{Endpoint: r.Endpoint, ID: r.ResourceID})
		if err != nil {
			s.log.WithError(err).WithField("resource", r.Endpoint+"/"+r.ResourceID).Warn("Failed to evict swept resource")
			continue
		}
		removed += n
	}
	return removed
}

func (s *Service) notify(ctx context.Context, res *Result) {
	if s.notifier == nil {
		return
	}

	msg := queue.NewSweepNotification(res.Cutoff, res.Scanned, res.Deleted, res.Archived,
		strings.Join(res.ArchiveKeys, ","), res.DryRun)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.notifier.PublishSweep(ctx, msg); err != nil {
		s.log.WithError(err).Warn("Failed to send sweep notification")
	}
}
