// Package service runs scans either once (manual mode) or repeatedly on a
// schedule (timer mode), writing each result as a JSON report.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/linthound/linthound/internal/model"
)

// ScanFunc runs one full scan pass. The service owns scheduling, not
// scanning.
type ScanFunc func(ctx context.Context) (model.Result, error)

type Service struct {
	cfg     model.Service
	scan    ScanFunc
	out     io.Writer
	results chan model.Result
}

func New(cfg model.Service, scan ScanFunc) *Service {
	return &Service{
		cfg:     cfg,
		scan:    scan,
		out:     os.Stdout,
		results: make(chan model.Result, 1),
	}
}

// WithOutput redirects manual-mode reports. For unit testing.
func (s *Service) WithOutput(w io.Writer) *Service {
	s.out = w
	return s
}

// Do runs the service until the scan finishes (manual) or ctx is canceled
// (timer). Timer mode schedules a scan per interval, runs one immediately
// and reports every result as it arrives; a failed scan is logged, the
// service keeps going.
func (s *Service) Do(ctx context.Context) error {
	if s.cfg.Mode == model.ServiceModeManual {
		res, err := s.scan(ctx)
		if err != nil {
			return err
		}
		return s.report(ctx, res)
	}

	if s.cfg.Schedule == nil {
		return fmt.Errorf("timer mode requires a schedule")
	}
	interval, err := ParseSchedule(*s.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("parsing schedule: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			res, err := s.scan(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "scheduled scan failed", "error", err)
				return
			}
			select {
			case s.results <- res:
			case <-ctx.Done():
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting down scheduler failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-s.results:
			if err := s.report(ctx, res); err != nil {
				slog.ErrorContext(ctx, "writing report failed", "error", err)
			}
		}
	}
}

func (s *Service) report(ctx context.Context, res model.Result) error {
	w := s.out
	if s.cfg.Dir != nil {
		path := filepath.Join(*s.cfg.Dir, reportName(res))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		w = f
		slog.InfoContext(ctx, "writing report", "path", path)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func reportName(res model.Result) string {
	id := res.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("linthound-%s-%s.json", res.Started.UTC().Format("20060102T150405"), id)
}
