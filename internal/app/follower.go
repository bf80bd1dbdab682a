package app

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
	"github.com/bft-labs/pryvlink/pkg/backoff"
)

// EventStreamer is the part of a Connection the follower needs.
type EventStreamer interface {
	GetEventsStreamed(ctx context.Context, query url.Values, onEvent EventFunc) (domain.StreamSummary, error)
	ServerTime() float64
}

// FollowerConfig contains configuration for the follower loop.
type FollowerConfig struct {
	PollInterval time.Duration
	Once         bool

	// Query is the base events query; modifiedSince is managed by the follower.
	Query url.Values
}

// SyncEventEmitter is called after each sync pass.
type SyncEventEmitter interface {
	OnSyncSuccess(events, deletions int, duration time.Duration)
	OnSyncError(err error)
}

// Follower keeps a local consumer up to date with the service by repeatedly
// streaming the events modified since the last pass.
type Follower struct {
	config   FollowerConfig
	streamer EventStreamer
	cursors  ports.CursorRepository
	logger   ports.Logger
	sink     EventFunc
	emitter  SyncEventEmitter
}

// NewFollower creates a follower delivering events to sink. emitter may be nil.
func NewFollower(
	config FollowerConfig,
	streamer EventStreamer,
	cursors ports.CursorRepository,
	logger ports.Logger,
	sink EventFunc,
	emitter SyncEventEmitter,
) *Follower {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Follower{
		config:   config,
		streamer: streamer,
		cursors:  cursors,
		logger:   logger,
		sink:     sink,
		emitter:  emitter,
	}
}

// Run executes the sync loop until the context is canceled, or after the
// first successful pass in Once mode.
func (f *Follower) Run(ctx context.Context) error {
	cursor, err := f.cursors.Load(ctx)
	if err != nil {
		f.logger.Error("failed to load cursor", ports.Err(err))
		// Continue with empty cursor
	}

	back := backoff.New(backoff.DefaultInitial, backoff.DefaultMax)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := f.SyncOnce(ctx, &cursor); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Handler failures come from the local sink; retrying will not help.
			if errors.Is(err, domain.ErrHandler) {
				return err
			}
			if werr := back.Wait(ctx); werr != nil {
				return werr
			}
			continue
		}
		back.Reset()

		if f.config.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.config.PollInterval):
		}
	}
}

// SyncOnce streams the changes since cursor, advances it and persists it.
func (f *Follower) SyncOnce(ctx context.Context, cursor *domain.Cursor) error {
	query := url.Values{}
	for k, v := range f.config.Query {
		query[k] = append([]string(nil), v...)
	}
	if cursor.ModifiedSince > 0 {
		query.Set("modifiedSince", strconv.FormatFloat(cursor.ModifiedSince, 'f', -1, 64))
		query.Set("includeDeletions", "true")
	}

	start := time.Now()
	summary, err := f.streamer.GetEventsStreamed(ctx, query, f.sink)
	duration := time.Since(start)

	if err != nil {
		f.logger.Error("sync failed", ports.Err(err))
		if f.emitter != nil {
			f.emitter.OnSyncError(err)
		}
		return err
	}

	// Without server metadata fall back to the skew-corrected local clock.
	if !summary.Meta.HasServerTime() {
		summary.Meta.ServerTime = f.streamer.ServerTime()
	}
	cursor.Advance(summary, time.Now())

	f.logger.Info("synced events",
		ports.Int("events", summary.EventsCount),
		ports.Int("deletions", summary.DeletionsCount),
		ports.Float64("modified_since", cursor.ModifiedSince),
		ports.Duration("duration", duration),
	)
	if f.emitter != nil {
		f.emitter.OnSyncSuccess(summary.EventsCount, summary.DeletionsCount, duration)
	}

	if err := f.cursors.Save(ctx, *cursor); err != nil {
		f.logger.Error("failed to save cursor", ports.Err(err))
	}
	return nil
}
