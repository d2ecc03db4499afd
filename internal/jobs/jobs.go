// Package jobs runs the scheduled background work: CSV backups of the
// board and holiday feed refreshes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"guardboard/internal/csvcodec"
	"guardboard/internal/ics"
	appLog "guardboard/internal/log"
	"guardboard/internal/metrics"
	"guardboard/internal/model"
	"guardboard/internal/session"
)

const (
	JobBackup = "backup"
	JobFeeds  = "feeds"

	backupPrefix = "schedule-"
	backupSuffix = ".csv"
	backupStamp  = "20060102-150405"
)

// Options configures a Runner.
type Options struct {
	Session *session.Session

	BackupDir  string
	BackupKeep int

	Fetcher *ics.Fetcher
	Feeds   []ics.Feed

	Metrics *metrics.Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner owns the cron scheduler and the job bodies. The job bodies are
// exported so subcommands and tests can run them directly.
type Runner struct {
	opts Options
	cron *cron.Cron
}

func New(opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := cronLogger{}
	return &Runner{
		opts: opts,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Schedule registers the backup and feed jobs. An empty spec skips that job.
func (r *Runner) Schedule(ctx context.Context, backupSpec, feedsSpec string) error {
	if backupSpec != "" {
		if _, err := r.cron.AddFunc(backupSpec, func() {
			_, err := r.Backup(ctx)
			r.opts.Metrics.JobRun(JobBackup, err)
		}); err != nil {
			return fmt.Errorf("backup schedule %q: %w", backupSpec, err)
		}
		appLog.Info("job scheduled", "job", JobBackup, "cron", backupSpec)
	}
	if feedsSpec != "" && len(r.opts.Feeds) > 0 {
		if _, err := r.cron.AddFunc(feedsSpec, func() {
			_, err := r.RefreshFeeds(ctx)
			r.opts.Metrics.JobRun(JobFeeds, err)
		}); err != nil {
			return fmt.Errorf("feeds schedule %q: %w", feedsSpec, err)
		}
		appLog.Info("job scheduled", "job", JobFeeds, "cron", feedsSpec, "feeds", len(r.opts.Feeds))
	}
	return nil
}

func (r *Runner) Start() { r.cron.Start() }

// Stop stops the scheduler and waits for running jobs, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("jobs still running at shutdown")
	}
}

// Backup writes the whole board as CSV into BackupDir and prunes old files
// down to BackupKeep. It returns the new file path.
func (r *Runner) Backup(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := r.opts.BackupDir
	if dir == "" {
		return "", errors.New("backup dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	name := backupPrefix + r.opts.Now().UTC().Format(backupStamp) + backupSuffix
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	snap := r.opts.Session.Store().Snapshot()
	if err := csvcodec.Export(tmp, snap); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", err
	}

	removed, err := prune(dir, r.opts.BackupKeep)
	if err != nil {
		appLog.Error("backup prune failed", err, "dir", dir)
	}
	appLog.Info("backup written", "path", path, "guards", len(snap.Guards), "holidays", len(snap.Holidays), "pruned", removed)
	return path, nil
}

// prune keeps the newest keep backups. Timestamps sort lexically.
func prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, backupPrefix) && strings.HasSuffix(n, backupSuffix) {
			names = append(names, n)
		}
	}
	if len(names) <= keep {
		return 0, nil
	}
	sort.Strings(names)

	removed := 0
	var errs []error
	for _, n := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// FeedReport summarizes one refresh across all feeds.
type FeedReport struct {
	Fetched       int
	Failed        int
	Parsed        int
	HolidaysAdded int
	Duplicates    int
}

// RefreshFeeds fetches every feed, converts events to holidays and merges
// them through the session's import gate. A failing feed does not stop the
// others; the error is returned only when nothing could be merged.
func (r *Runner) RefreshFeeds(ctx context.Context) (FeedReport, error) {
	var rep FeedReport
	if r.opts.Fetcher == nil {
		return rep, errors.New("no feed fetcher configured")
	}

	var errs []error
	var all []model.Holiday
	for _, feed := range r.opts.Feeds {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, err := r.opts.Fetcher.Fetch(ctx, feed)
		if err != nil {
			rep.Failed++
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			appLog.Error("feed fetch failed", err, "feed", feed.ID)
			continue
		}
		holidays, err := ics.ParseHolidays(feed, res.Body)
		if err != nil {
			rep.Failed++
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		rep.Fetched++
		rep.Parsed += len(holidays)
		all = append(all, holidays...)
	}

	if len(all) > 0 {
		mr, err := r.opts.Session.ImportHolidays(ctx, all)
		rep.HolidaysAdded = mr.HolidaysAdded
		rep.Duplicates = len(mr.Dropped)
		r.opts.Metrics.ImportRows("feed", "added", mr.HolidaysAdded)
		r.opts.Metrics.ImportRows("feed", "duplicate", len(mr.Dropped))
		if err != nil {
			if errors.Is(err, session.ErrImportInProgress) {
				appLog.Warn("feed refresh deferred, import in progress")
			}
			return rep, err
		}
	}

	appLog.Info("feed refresh completed",
		"fetched", rep.Fetched,
		"failed", rep.Failed,
		"parsed", rep.Parsed,
		"holidays_added", rep.HolidaysAdded,
		"duplicates", rep.Duplicates,
	)
	if rep.Fetched == 0 && len(errs) > 0 {
		return rep, errors.Join(errs...)
	}
	return rep, nil
}

// cronLogger routes cron's own logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
