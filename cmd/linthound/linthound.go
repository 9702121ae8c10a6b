package main

import (
	"context"
	"os"

	"github.com/linthound/linthound/internal/linter"
	"github.com/linthound/linthound/internal/memwatch"
	"github.com/linthound/linthound/internal/model"
	"github.com/linthound/linthound/internal/pool"
	"github.com/linthound/linthound/internal/scan"
	"github.com/linthound/linthound/internal/service"
	"github.com/linthound/linthound/internal/walk"
)

// newScanFunc wires discovery, the worker pool, the memory monitor and the
// scanner into a single pass. Everything is rebuilt per invocation so a timer
// service never carries state from one scan into the next.
func newScanFunc(cfg model.Config) service.ScanFunc {
	return func(ctx context.Context) (model.Result, error) {
		tools, err := linter.ParseConfig("linters")
		if err != nil {
			return model.Result{}, err
		}
		registry := linter.NewRegistry(tools)

		entries, err := discover(ctx, cfg.Scan, registry.Extensions())
		if err != nil {
			return model.Result{}, err
		}

		monitor := memwatch.New(nil,
			cfg.Scan.Memory.WarningMB,
			cfg.Scan.Memory.MaxMB,
			cfg.Scan.Memory.SampleInterval(),
		)
		workers := pool.New(cfg.Scan.PoolSize)
		scanner := scan.New(cfg.Scan, registry, workers, monitor)

		return scanner.Run(ctx, walk.Entries(entries)), nil
	}
}

// discover collects candidates from every configured root under one shared
// file budget. No configured paths means the current directory.
func discover(ctx context.Context, cfg model.Scan, extensions []string) ([]walk.Entry, error) {
	paths := cfg.Paths
	if len(paths) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		paths = []string{cwd}
	}

	remaining := cfg.MaxTotalFiles
	var entries []walk.Entry
	for _, p := range paths {
		if remaining <= 0 {
			break
		}
		found, err := walk.Discover(ctx, os.DirFS(p), p, walk.Options{
			Ignore:     cfg.Ignore,
			Extensions: extensions,
			MaxFiles:   remaining,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
		remaining -= len(found)
	}
	return entries, nil
}
