// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/embedsync"
	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/reconcile"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := ai.DefaultConfig()

	return &cli.App{
		Name:  "embedsync",
		Usage: "Keep record embeddings in sync with a remote cache and compute backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Base URL of the embedding proxy",
				Value:   defaults.Host,
				EnvVars: []string{"EMBEDSYNC_HOST"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the local cache directory (empty keeps it in memory)",
				Value:   ".embedsync",
				EnvVars: []string{"EMBEDSYNC_DB"},
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Retries after a failed compute call",
				Value: defaults.MaxRetries,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Delay between compute retries",
				Value: defaults.RetryDelay,
			},
			&cli.DurationFlag{
				Name:  "compute-timeout",
				Usage: "Timeout of the first compute attempt; later attempts get longer",
				Value: defaults.ComputeTimeout,
			},
			&cli.IntFlag{
				Name:  "transport-retries",
				Usage: "HTTP-level retries for transient transport failures",
				Value: defaults.TransportRetries,
			},
			&cli.StringFlag{
				Name:    "openai-host",
				Usage:   "Compute embeddings through this OpenAI-compatible API instead of the proxy",
				EnvVars: []string{"EMBEDSYNC_OPENAI_HOST"},
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "Embedding model for --openai-host",
				Value:   defaults.Model,
				EnvVars: []string{"EMBEDSYNC_OPENAI_MODEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Resolve embeddings for a JSON-lines file of records",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Records file, one JSON object per line (- for stdin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the result JSON (- for stdout)",
						Value:   "-",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Ignore the local cache for this run",
					},
					&cli.BoolFlag{
						Name:  "no-local-cache",
						Usage: "Neither read nor save the local cache",
					},
					&cli.BoolFlag{
						Name:  "no-field-embeddings",
						Usage: "Only compute the combined embedding",
					},
					&cli.BoolFlag{
						Name:  "wake",
						Usage: "Wake the compute backend before reconciling",
					},
					&cli.DurationFlag{
						Name:  "call-delay",
						Usage: "Minimum spacing between compute calls",
						Value: reconcile.DefaultConfig().CallDelay,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent remote cache writes",
						Value: reconcile.DefaultConfig().WriteBackWorkers,
					},
				},
			},
			{
				Name:   "wake",
				Usage:  "Wake the compute backend",
				Action: wakeCommand,
			},
			{
				Name:   "check",
				Usage:  "Check the remote cache connection and the compute backend",
				Action: checkCommand,
			},
			{
				Name:  "cache",
				Usage: "Inspect or clear the local cache",
				Subcommands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "Show the local cache age and size",
						Action: cacheStatusCommand,
					},
					{
						Name:   "clear",
						Usage:  "Remove the local cache",
						Action: cacheClearCommand,
					},
				},
			},
			{
				Name:   "lookup",
				Usage:  "Look up the remote cache entry of one record",
				Action: lookupCommand,
				Flags:  recordFlags(),
			},
			{
				Name:   "fingerprint",
				Usage:  "Print the content fingerprint of each record in a JSON-lines file",
				Action: fingerprintCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Records file, one JSON object per line (- for stdin)",
						Required: true,
					},
				},
			},
		},
	}
}

func recordFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "Record id", Required: true},
		&cli.StringFlag{Name: "title", Usage: "Record title"},
		&cli.StringFlag{Name: "description", Usage: "Record description"},
		&cli.StringFlag{Name: "problem", Usage: "Record problem statement"},
		&cli.StringFlag{Name: "method", Usage: "Record method"},
		&cli.StringFlag{Name: "owner", Usage: "Record owner name"},
	}
}

func openSyncer(c *cli.Context, opts ...embedsync.SyncerOption) (*embedsync.Syncer, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithRetries(c.Int("max-retries"), c.Duration("retry-delay")),
		ai.WithComputeTimeout(c.Duration("compute-timeout")),
		ai.WithTransportRetries(c.Int("transport-retries")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid proxy configuration: %w", err)
	}

	opts = append([]embedsync.SyncerOption{embedsync.WithAIConfig(aiConfig)}, opts...)
	if host := c.String("openai-host"); host != "" {
		opts = append(opts, embedsync.WithOpenAICompute(ai.NewConfig(
			ai.WithHost(host),
			ai.WithModel(c.String("openai-model")),
		)))
	}

	syncer, err := embedsync.NewSyncer(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open syncer: %w", err)
	}
	return syncer, nil
}

func syncCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	records, err := readRecordsFile(c.String("input"))
	if err != nil {
		return err
	}

	syncer, err := openSyncer(c, embedsync.WithEngineOptions(
		reconcile.WithLocalCache(!c.Bool("no-local-cache")),
		reconcile.WithFieldEmbeddings(!c.Bool("no-field-embeddings")),
		reconcile.WithCallDelay(c.Duration("call-delay")),
		reconcile.WithWriteBackPool(c.Int("workers")),
	))
	if err != nil {
		return err
	}
	defer syncer.Close()

	stderr := c.App.ErrWriter
	fmt.Fprintf(stderr, "Records: %d\n", len(records))
	fmt.Fprintf(stderr, "Proxy: %s\n", c.String("host"))
	fmt.Fprintln(stderr)

	if c.Bool("wake") && !syncer.Warm(ctx, statusPrinter(stderr)) {
		return errors.New("compute backend is not responding")
	}

	tracker := reconcile.NewProgressTracker(stderr)
	tracker.Start()
	result, runErr := syncer.Reconcile(ctx, records, tracker.Func(), c.Bool("force"))
	tracker.Finish()
	if result == nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}

	stats := syncer.Stats()
	fmt.Fprintf(stderr, "Resolved %d of %d records (local %d, remote %d, computed %d, failed %d)\n",
		len(result), len(records), stats.FromLocal, stats.FromRemote, stats.Computed, stats.Errors)

	if err := writeResultFile(c.String("output"), c.App.Writer, result); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("sync interrupted: %w", runErr)
	}
	return nil
}

func wakeCommand(c *cli.Context) error {
	syncer, err := openSyncer(c)
	if err != nil {
		return err
	}
	defer syncer.Close()

	if !syncer.Warm(c.Context, statusPrinter(c.App.ErrWriter)) {
		return errors.New("compute backend is not responding")
	}
	fmt.Fprintln(c.App.Writer, "compute backend is awake")
	return nil
}

func checkCommand(c *cli.Context) error {
	syncer, err := openSyncer(c)
	if err != nil {
		return err
	}
	defer syncer.Close()

	out := c.App.Writer
	status := syncer.CheckConnection(c.Context)
	if status.Connected {
		fmt.Fprintln(out, "remote cache: connected")
	} else {
		fmt.Fprintf(out, "remote cache: unavailable (%s)\n", status.Error)
	}

	alive := syncer.Alive(c.Context)
	if alive {
		fmt.Fprintln(out, "compute backend: alive")
	} else {
		fmt.Fprintln(out, "compute backend: not responding")
	}

	if !status.Connected || !alive {
		return cli.Exit("", 1)
	}
	return nil
}

func cacheStatusCommand(c *cli.Context) error {
	syncer, err := openSyncer(c)
	if err != nil {
		return err
	}
	defer syncer.Close()

	status, err := syncer.CacheStatus(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read local cache: %w", err)
	}

	out := c.App.Writer
	if !status.Present {
		fmt.Fprintln(out, "local cache: empty")
		return nil
	}
	state := "valid"
	if !status.Valid {
		state = "expired"
	}
	fmt.Fprintf(out, "local cache: %d entries, age %s of %s (%s)\n",
		status.Entries, status.Age.Round(time.Second), status.MaxAge, state)
	return nil
}

func cacheClearCommand(c *cli.Context) error {
	syncer, err := openSyncer(c)
	if err != nil {
		return err
	}
	defer syncer.Close()

	if err := syncer.ClearCache(c.Context); err != nil {
		return fmt.Errorf("failed to clear local cache: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "local cache cleared")
	return nil
}

func lookupCommand(c *cli.Context) error {
	record := core.Record{
		ID:               c.String("id"),
		Title:            c.String("title"),
		Description:      c.String("description"),
		ProblemStatement: c.String("problem"),
		Method:           c.String("method"),
		OwnerName:        c.String("owner"),
	}

	syncer, err := openSyncer(c)
	if err != nil {
		return err
	}
	defer syncer.Close()

	entry, ok, err := syncer.Lookup(c.Context, record)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit(fmt.Sprintf("no current entry for %s", record.ID), 1)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}

func fingerprintCommand(c *cli.Context) error {
	records, err := readRecordsFile(c.String("input"))
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", r.ID, core.FingerprintOf(r))
	}
	return nil
}

func statusPrinter(w io.Writer) ai.StatusFunc {
	return func(status string) {
		fmt.Fprintln(w, status)
	}
}

func readRecordsFile(path string) ([]core.Record, error) {
	if path == "-" {
		return readRecords(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records: %w", err)
	}
	defer f.Close()
	return readRecords(f)
}

// readRecords parses one JSON record per line. Blank lines are skipped.
func readRecords(r io.Reader) ([]core.Record, error) {
	var records []core.Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record core.Record
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := core.ValidateRecord(record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

func writeResultFile(path string, stdout io.Writer, result core.BatchResult) error {
	if path == "-" {
		return writeResult(stdout, result)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := writeResult(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeResult(w io.Writer, result core.BatchResult) error {
	if err := json.NewEncoder(w).Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
