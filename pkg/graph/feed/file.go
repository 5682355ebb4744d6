package feed

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the file feed waits for writes to settle
const DefaultDebounce = 100 * time.Millisecond

// FileFeed reads findings from a JSON array on disk and watches the file for
// changes. The parent directory is watched rather than the file itself so
// editors that replace the file by rename keep triggering updates.
type FileFeed struct {
	path     string
	debounce time.Duration
	logger   *logrus.Logger

	updates  chan struct{}
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// FileOption configures a FileFeed
type FileOption func(*FileFeed)

// WithDebounce sets the settle window for change notifications
func WithDebounce(d time.Duration) FileOption {
	return func(f *FileFeed) {
		f.debounce = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) FileOption {
	return func(f *FileFeed) {
		f.logger = logger
	}
}

// NewFileFeed creates a feed backed by the JSON file at path
func NewFileFeed(path string, opts ...FileOption) *FileFeed {
	f := &FileFeed{
		path:     path,
		debounce: DefaultDebounce,
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logrus.New()
		f.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return f
}

// Path returns the watched file path
func (f *FileFeed) Path() string {
	return f.path
}

// Findings decodes the file. Findings tagged with another investigation are
// skipped; untagged findings belong to every investigation.
func (f *FileFeed) Findings(ctx context.Context, investigationID string) ([]graph.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := ReadFindings(f.path)
	if err != nil {
		return nil, err
	}

	out := make([]graph.Finding, 0, len(all))
	for _, finding := range all {
		if investigationID != "" && finding.InvestigationID != "" && finding.InvestigationID != investigationID {
			continue
		}
		out = append(out, finding)
	}
	return out, nil
}

// ReadFindings decodes a JSON array of findings from path
func ReadFindings(path string) ([]graph.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read findings file %s", path)
	}

	var findings []graph.Finding
	if err := json.Unmarshal(data, &findings); err != nil {
		return nil, errors.Wrapf(err, "failed to decode findings file %s", path)
	}
	return findings, nil
}

// Updates implements Feed. Signals arrive only after Start.
func (f *FileFeed) Updates() <-chan struct{} {
	return f.updates
}

// Start begins watching the file. Watching stops when ctx is cancelled or
// Stop is called.
func (f *FileFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	f.watcher = watcher

	go f.watch(ctx, watcher)
	f.logger.WithField("path", f.path).Info("Watching findings file")
	return nil
}

// Stop stops watching
func (f *FileFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
		f.mu.Lock()
		if f.watcher != nil {
			f.watcher.Close()
		}
		f.mu.Unlock()
	})
}

func (f *FileFeed) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(f.path)
	var timer *time.Timer
	var timerC <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(f.debounce)
				timerC = timer.C
			} else {
				timer.Reset(f.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			f.logger.WithField("path", f.path).Debug("Findings file changed")
			notify(f.updates)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.WithError(err).Warn("File watcher error")
		}
	}
}
