package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// recordingRetentionSweeper deletes FLV recordings older than maxAge from a
// directory on a cron schedule. Recording files accumulate indefinitely
// under RecordDir (see recorder.go in internal/rtmp/media); left alone on a
// long-running server they eventually fill the disk, so this runs
// alongside the accept loop whenever retention is configured.
type recordingRetentionSweeper struct {
	dir    string
	maxAge time.Duration
	log    *slog.Logger
	cron   *cron.Cron
}

// newRecordingRetentionSweeper builds a sweeper for dir. schedule is a
// standard 5-field cron expression; an empty schedule defaults to once an
// hour.
func newRecordingRetentionSweeper(dir string, maxAge time.Duration, schedule string, log *slog.Logger) (*recordingRetentionSweeper, error) {
	if schedule == "" {
		schedule = "0 * * * *"
	}
	if log == nil {
		log = slog.Default()
	}
	s := &recordingRetentionSweeper{
		dir:    dir,
		maxAge: maxAge,
		log:    log.With("component", "retention_sweeper"),
		cron:   cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("retention sweeper: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *recordingRetentionSweeper) Start() { s.cron.Start() }

func (s *recordingRetentionSweeper) Stop() { <-s.cron.Stop().Done() }

// sweep removes every .flv (or zstd-compressed .flv.zst, see
// media.RecorderOptions.Compress) file under dir whose modification time is
// older than maxAge. It never descends into subdirectories and never removes
// a file currently being written (best-effort: an actively growing file's
// mtime is recent, so it won't be selected).
func (s *recordingRetentionSweeper) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("reading recording directory", "dir", s.dir, "error", err)
		}
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		lower := strings.ToLower(entry.Name())
		isRecording := strings.HasSuffix(lower, ".flv") || strings.HasSuffix(lower, ".flv.zst")
		if entry.IsDir() || !isRecording {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("removing expired recording", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("swept expired recordings", "dir", s.dir, "removed", removed)
	}
}
