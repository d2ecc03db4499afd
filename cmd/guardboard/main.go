package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"guardboard/internal/config"
	"guardboard/internal/ics"
	"guardboard/internal/jobs"
	appLog "guardboard/internal/log"
	"guardboard/internal/metrics"
	"guardboard/internal/persist"
	"guardboard/internal/session"
	"guardboard/internal/store"
	"guardboard/internal/web"
)

const version = "0.1.0"

const defaultConfigPath = "./guardboard.yaml"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: guardboard [command] [flags]

Commands:
  serve           run the board, API and scheduled jobs (default)
  export          write the board as CSV
  import FILE     merge a CSV file into the board
  hash-password   create an argon2id hash for basic_auth
  snapshot        capture the board page as PNG

Run "guardboard <command> -h" for command flags.
`)
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "export":
		err = runExport(args)
	case "import":
		err = runImport(args)
	case "hash-password":
		err = runHashPassword(args)
	case "snapshot":
		err = runSnapshot(args)
	case "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		appLog.Error(cmd+" failed", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the log level.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// openStore wires the configured blob store into a record store. The
// returned closer releases the backend (the SQLite handle).
func openStore(cfg *config.Config) (*store.Store, io.Closer, error) {
	blobs, err := persist.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	closer := io.Closer(nopCloser{})
	if c, ok := blobs.(io.Closer); ok {
		closer = c
	}

	adapter := persist.NewAdapter(blobs)
	snap, err := adapter.Load()
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("load records: %w", err)
	}
	appLog.Info("store opened",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"guards", len(snap.Guards),
		"holidays", len(snap.Holidays),
	)
	return store.New(snap, adapter), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	listen := fs.String("listen", "", "HTTP listen address (overrides config if set)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	appLog.Info("guardboard starting", "version", version)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"storage", cfg.Storage.Backend,
		"backup_cron", cfg.Backup.Cron,
		"feeds", len(cfg.Feeds.Sources),
		"basic_auth", cfg.BasicAuth != nil,
	)

	st, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(st)
	rec := metrics.New()

	runner := jobs.New(jobs.Options{
		Session:    sess,
		BackupDir:  cfg.Backup.Dir,
		BackupKeep: cfg.Backup.Keep,
		Fetcher:    ics.NewFetcher(cfg.Feeds.CacheDir, nil),
		Feeds:      cfg.FeedList(),
		Metrics:    rec,
	})
	if err := runner.Schedule(ctx, cfg.Backup.Cron, cfg.Feeds.Cron); err != nil {
		return err
	}
	runner.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		runner.Stop(stopCtx)
	}()

	srv := web.NewServer(cfg, sess, rec)
	err = srv.ListenAndServe(ctx, cfg.Listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("guardboard exiting")
	return nil
}
