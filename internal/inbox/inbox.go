// Package inbox turns files dropped into a directory into note captures.
//
// A .md or .txt file is captured once its content has settled, then moved
// into the processed/ subdirectory. Files whose capture fails stay in place
// and are retried on the next change or restart.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/cogninote/internal/checksum"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/noteservice"
	"github.com/starford/cogninote/internal/parser"
)

// ProcessedDir is the subdirectory captured files are moved into.
const ProcessedDir = "processed"

// Capturer creates notes from capture requests.
type Capturer interface {
	Capture(ctx context.Context, req noteservice.CaptureRequest) (models.Note, error)
}

// Inbox watches one directory for capture files.
type Inbox struct {
	root   string
	settle time.Duration
	capt   Capturer
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{} // checksums captured during this run
}

// New prepares root and its processed/ subdirectory.
func New(root string, settle time.Duration, capt Capturer, logger *slog.Logger) (*Inbox, error) {
	if err := os.MkdirAll(filepath.Join(root, ProcessedDir), 0o755); err != nil {
		return nil, fmt.Errorf("inbox: prepare %s: %w", root, err)
	}
	if settle <= 0 {
		settle = 200 * time.Millisecond
	}
	return &Inbox{
		root:   root,
		settle: settle,
		capt:   capt,
		logger: logger,
		seen:   make(map[string]struct{}),
	}, nil
}

// Sweep processes every capture file already present.
func (ib *Inbox) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(ib.root)
	if err != nil {
		return fmt.Errorf("inbox: sweep: %w", err)
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.IsDir() || !eligible(e.Name()) {
			continue
		}
		path := filepath.Join(ib.root, e.Name())
		if err := ib.Process(ctx, path); err != nil {
			ib.logger.Warn("inbox: sweep capture failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Watch sweeps the directory and then captures files as they settle until
// ctx is cancelled.
func (ib *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(ib.root); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", ib.root, err)
	}
	if err := ib.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	ib.logger.Info("inbox: started", slog.String("root", ib.root))

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(ib.settle)
			return
		}
		timers[path] = time.AfterFunc(ib.settle, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			ib.logger.Info("inbox: stopped")
			return nil

		case path := <-ready:
			delete(timers, path)
			if err := ib.Process(ctx, path); err != nil {
				ib.logger.Warn("inbox: capture failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(ev.Name) != filepath.Clean(ib.root) || !eligible(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ib.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Process captures the file at path and moves it into processed/.
// Content already captured during this run is moved without a second
// capture.
func (ib *Inbox) Process(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inbox: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	sum := checksum.Sum(data)
	ib.mu.Lock()
	_, dup := ib.seen[sum]
	ib.mu.Unlock()
	if dup {
		ib.logger.Debug("inbox: duplicate content", slog.String("path", path))
		return ib.archive(path)
	}

	n, err := ib.capt.Capture(ctx, noteservice.FileRequest(parser.Parse(data)))
	if err != nil {
		return fmt.Errorf("inbox: capture %s: %w", path, err)
	}

	ib.mu.Lock()
	ib.seen[sum] = struct{}{}
	ib.mu.Unlock()

	ib.logger.Info("inbox: captured",
		slog.String("path", path),
		slog.String("id", n.ID),
		slog.String("title", n.Title))
	return ib.archive(path)
}

// archive moves path into processed/, suffixing the name when taken.
func (ib *Inbox) archive(path string) error {
	name := filepath.Base(path)
	dst := filepath.Join(ib.root, ProcessedDir, name)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(name)
		dst = filepath.Join(ib.root, ProcessedDir,
			fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), time.Now().UnixNano(), ext))
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("inbox: archive %s: %w", path, err)
	}
	return nil
}

func eligible(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt":
		return true
	}
	return false
}
