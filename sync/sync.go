// Package sync orchestrates one run: fetch measurements, encode the FIT
// file, export, and upload.
package sync

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wgsync/wgsync/measurement"
)

// UploadFilename is the name given to the FIT file on upload.
const UploadFilename = "withings_sync.fit"

// Source provides measurements and the last-sync bookmark.
type Source interface {
	Measurements(ctx context.Context, from, to time.Time) ([]measurement.Group, error)
	Height(ctx context.Context) (float64, bool, error)
	LastSync() time.Time
	SetLastSync(t time.Time) error
}

// Uploader sends a finished FIT file to its destination.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) error
}

// Options selects what one run does.
type Options struct {
	// From and To bound the fetch. A nil From falls back to the source's
	// last-sync bookmark; a nil To means now.
	From, To *time.Time

	// JSONPath and FITPath, when set, are files to write.
	JSONPath string
	FITPath  string

	// Upload sends the FIT file to the uploader.
	Upload bool
}

// Syncer runs syncs. A single Syncer can run repeatedly; each run builds a
// fresh encoder.
type Syncer struct {
	source   Source
	uploader Uploader
	clock    clock.Clock
	logger   golog.Logger
}

// New returns a Syncer. uploader may be nil when uploads are never requested.
func New(source Source, uploader Uploader, logger golog.Logger) *Syncer {
	return &Syncer{source: source, uploader: uploader, clock: clock.New(), logger: logger}
}

// Run performs one sync.
func (s *Syncer) Run(ctx context.Context, opts Options) error {
	from, to, defaulted := s.resolveRange(opts)
	s.logger.Infow("syncing measurements", "from", from, "to", to)

	groups, err := s.source.Measurements(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "fetching measurements")
	}
	if len(groups) == 0 {
		s.logger.Info("no measurements found for the period")
		return nil
	}

	var height *float64
	if h, ok, err := s.source.Height(ctx); err != nil {
		s.logger.Warnw("could not fetch height; skipping BMI", "error", err)
	} else if ok {
		s.logger.Infow("using stored height for BMI", "meters", h)
		height = &h
	}

	var fitData []byte
	if opts.FITPath != "" || opts.Upload {
		if fitData, err = encodeFIT(groups, height, s.clock.Now()); err != nil {
			return errors.Wrap(err, "encoding FIT file")
		}
	}

	// The exports only read the shared group slice, so they can run
	// together.
	var eg errgroup.Group
	if opts.JSONPath != "" {
		eg.Go(func() error {
			return errors.Wrap(writeJSON(opts.JSONPath, groups), "writing JSON export")
		})
	}
	if opts.FITPath != "" {
		eg.Go(func() error {
			return errors.Wrap(os.WriteFile(opts.FITPath, fitData, 0o644), "writing FIT file")
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if opts.Upload {
		if s.uploader == nil {
			return errors.New("upload requested but no uploader configured")
		}
		if err := s.uploader.Upload(ctx, fitData, UploadFilename); err != nil {
			return errors.Wrap(err, "uploading FIT file")
		}
		// Only move the bookmark when this run's window started from it.
		if defaulted {
			if err := s.source.SetLastSync(s.clock.Now()); err != nil {
				return errors.Wrap(err, "updating last-sync bookmark")
			}
		}
	}

	s.logger.Infow("sync complete", "groups", len(groups))
	return nil
}

func (s *Syncer) resolveRange(opts Options) (from, to time.Time, defaulted bool) {
	if opts.From != nil {
		from = *opts.From
	} else {
		from = s.source.LastSync()
		defaulted = true
	}
	if opts.To != nil {
		to = *opts.To
	} else {
		to = s.clock.Now()
	}
	return from, to, defaulted
}

func writeJSON(path string, groups []measurement.Group) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(groups)
}
