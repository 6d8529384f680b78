package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const lockFileName = "acquire.lock"

// Pipeline downloads an NDK archive and extracts it.
type Pipeline struct {
	URL         string
	DownloadDir string
	ExtractDir  string
	// LockDir holds the lock file that keeps concurrent runs apart. Empty
	// disables locking.
	LockDir     string
	Workers     int
	KeepArchive bool
	// ManifestPath records completed acquisitions. Empty disables it.
	ManifestPath string
	Client       *http.Client
	Reporter     Reporter
	Logger       *zap.Logger
}

// NewJob derives the download+extract job for the pipeline's URL.
func (p *Pipeline) NewJob() (Job, error) {
	name, err := archiveName(p.URL)
	if err != nil {
		return Job{}, err
	}
	return Job{
		FileName:    name,
		URL:         p.URL,
		ArchivePath: filepath.Join(p.DownloadDir, name),
		ExtractDir:  p.ExtractDir,
	}, nil
}

// Acquire fetches and extracts the archive and returns the directory that
// should hold the toolchain. The caller is expected to validate it.
func (p *Pipeline) Acquire(ctx context.Context) (string, error) {
	reporter := p.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	job, err := p.NewJob()
	if err != nil {
		return "", err
	}
	logger = logger.With(zap.String("url", job.URL), zap.String("archive", job.ArchivePath))

	if p.LockDir != "" {
		unlock, err := acquireLock(ctx, p.LockDir)
		if err != nil {
			return "", err
		}
		defer unlock()
	}

	reporter.Stage(StageDownload, "downloading", job.FileName)
	logger.Info("download started")
	start := time.Now()
	written, err := Fetch(ctx, p.Client, job.URL, job.ArchivePath, reporter.DownloadProgress)
	if err != nil {
		reporter.Stage(StageDownload, "error", err.Error())
		logger.Error("download failed", zap.Error(err))
		return "", err
	}
	reporter.Stage(StageDownload, "downloaded", fmt.Sprintf("%d bytes", written))
	logger.Info("download finished", zap.Int64("bytes", written), zap.Duration("elapsed", time.Since(start)))

	reporter.Stage(StageExtract, "extracting", job.ExtractDir)
	res, err := Extract(job.ArchivePath, job.ExtractDir, ExtractOptions{
		Workers:  p.Workers,
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		reporter.Stage(StageExtract, "error", err.Error())
		logger.Error("extract failed", zap.Error(err))
		return "", err
	}
	reporter.Stage(StageExtract, "extracted", fmt.Sprintf("%d entries", res.Entries))
	logger.Info("extract finished", zap.Int("entries", res.Entries), zap.String("top_level", res.TopLevel))

	if !p.KeepArchive {
		if err := os.Remove(job.ArchivePath); err != nil {
			logger.Warn("remove archive", zap.Error(err))
		}
	}

	root := job.ExtractDir
	if res.TopLevel != "" {
		root = filepath.Join(job.ExtractDir, res.TopLevel)
	}

	if p.ManifestPath != "" {
		entry := ManifestEntry{
			URL:     job.URL,
			Root:    root,
			Archive: job.FileName,
			Bytes:   written,
			Entries: res.Entries,
		}
		if err := recordInstall(p.ManifestPath, entry); err != nil {
			logger.Warn("record install", zap.Error(err))
		}
	}
	return root, nil
}

func archiveName(downloadURL string) (string, error) {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer archive name from url: %s", downloadURL)
	}
	if _, err := formatFor(base); err != nil {
		return "", err
	}
	return base, nil
}

func acquireLock(ctx context.Context, dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare lock dir: %w", err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
