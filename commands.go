// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/exectrace/config"
	"go.opentelemetry.io/exectrace/converter"
	"go.opentelemetry.io/exectrace/metrics"
	"go.opentelemetry.io/exectrace/periodiccaller"
	"go.opentelemetry.io/exectrace/tracehandler"
	"go.opentelemetry.io/exectrace/tracestore"
)

// syncJitter spreads the uploads of several hosts sharing a bucket.
const syncJitter = 0.2

// env is what a command operates on.
type env struct {
	cfg   *config.Config
	store *tracestore.Store
	out   io.Writer
}

type command struct {
	run         func(ctx context.Context, e *env, args []string) error
	needsRemote bool
}

var commands = map[string]command{
	"list":   {run: runList},
	"show":   {run: runShow},
	"remove": {run: runRemove},
	"upload": {run: runUpload, needsRemote: true},
	"sync":   {run: runSync, needsRemote: true},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func parseIDs(args []string) ([]tracestore.ID, error) {
	if len(args) == 0 {
		return nil, errors.New("no dump id given")
	}
	ids := make([]tracestore.ID, 0, len(args))
	for _, arg := range args {
		id, err := tracestore.IDFromString(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// runList prints one line per local dump, oldest first.
func runList(ctx context.Context, e *env, _ []string) error {
	set, err := e.store.ListLocal()
	if err != nil {
		return err
	}

	type entry struct {
		id   tracestore.ID
		dump *tracestore.Dump
	}
	entries := make([]entry, 0, len(set))
	for id := range set {
		d, err := e.store.Load(ctx, id)
		if err != nil {
			log.Warnf("Skipping dump %s: %v", id, err)
			continue
		}
		entries = append(entries, entry{id: id, dump: d})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return a.dump.Created.Compare(b.dump.Created)
	})

	for _, ent := range entries {
		d := ent.dump
		if _, err := fmt.Fprintf(e.out, "%s %s %s events=%d dropped=%d interrupted=%t\n",
			ent.id, d.Created.Format(time.RFC3339), d.SessionID, len(d.Events), d.Dropped,
			d.Interrupted); err != nil {
			return err
		}
	}
	return nil
}

// runShow replays the given dumps and renders their call trees.
func runShow(ctx context.Context, e *env, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		d, err := e.store.Load(ctx, id)
		if err != nil {
			return err
		}
		trace, err := tracehandler.Replay(d)
		if err != nil {
			return fmt.Errorf("failed to replay %s: %w", id, err)
		}

		if _, err = fmt.Fprintf(e.out, "# %s session=%s activations=%d depth=%d "+
			"inferred-exits=%d dropped=%d\n", id, d.SessionID, trace.Len(),
			trace.MaxDepth(), trace.InferredExits, d.Dropped); err != nil {
			return err
		}
		if _, err = converter.Convert(trace).WriteTo(e.out); err != nil {
			return err
		}
	}
	return nil
}

func runRemove(ctx context.Context, e *env, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err = e.store.Remove(id); err != nil {
			return err
		}
		if e.store.HasRemote() {
			if err = e.store.RemoveRemote(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func runUpload(ctx context.Context, e *env, _ []string) error {
	return e.store.UploadAll(ctx, e.cfg.UploadParallelism)
}

// runSync uploads local dumps every upload interval until ctx is canceled.
func runSync(ctx context.Context, e *env, _ []string) error {
	err := periodiccaller.Run(ctx, e.cfg.UploadInterval, syncJitter, true,
		func(ctx context.Context) {
			start := time.Now()
			if err := e.store.UploadAll(ctx, e.cfg.UploadParallelism); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Errorf("Failed to upload dumps: %v", err)
				}
				return
			}
			log.Debugf("Uploaded local dumps in %v", time.Since(start))
			metrics.Flush()
		})
	if errors.Is(err, context.Canceled) {
		log.Info("Exiting ...")
		return nil
	}
	return err
}
