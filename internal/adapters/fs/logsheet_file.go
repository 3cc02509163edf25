package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/ports"
)

// DefaultCloseTimeout bounds Close while a write is still in flight.
const DefaultCloseTimeout = 5 * time.Second

// LogsheetFile implements ports.ReopenableSink over an append-only file.
//
// The file is opened lazily with O_APPEND, so existing content is never
// truncated. Writes are serialized: at most one write is in flight, and a
// write that outlives its context keeps the file busy until it returns.
type LogsheetFile struct {
	path   string
	logger ports.Logger

	// sem holds the single write slot and guards f.
	sem chan struct{}
	f   *os.File
}

// NewLogsheetFile creates a sink for path. The file is created on first append.
func NewLogsheetFile(path string, logger ports.Logger) *LogsheetFile {
	return &LogsheetFile{
		path:   path,
		logger: logger,
		sem:    make(chan struct{}, 1),
	}
}

// Path returns the logsheet path.
func (l *LogsheetFile) Path() string {
	return l.path
}

// acquire takes the write slot or fails when ctx ends first. A free slot
// is taken even if ctx is already done.
func (l *LogsheetFile) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LogsheetFile) release() {
	<-l.sem
}

// Append writes p at the end of the file.
func (l *LogsheetFile) Append(ctx context.Context, p []byte) error {
	if err := l.acquire(ctx); err != nil {
		return domain.SinkUnavailable("wait for logsheet", l.path, err)
	}

	if err := l.openLocked(); err != nil {
		l.release()
		return domain.SinkUnavailable("open logsheet", l.path, err)
	}

	done := make(chan error, 1)
	f := l.f
	go func() {
		// The slot is released by the writer, not the caller, so a stuck
		// write blocks later appends instead of interleaving with them.
		defer l.release()
		n, err := f.Write(p)
		if err == nil && n < len(p) {
			err = errors.New("short write")
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return domain.SinkUnavailable("write logsheet", l.path, err)
		}
		return nil
	case <-ctx.Done():
		l.logger.Warn("logsheet write timed out; it may still complete",
			ports.String("path", l.path),
			ports.Int("bytes", len(p)),
		)
		return domain.SinkUnavailable("write logsheet", l.path, ctx.Err())
	}
}

// openLocked opens the file if needed. Caller holds the write slot.
func (l *LogsheetFile) openLocked() error {
	if l.f != nil {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.f = f
	l.logger.Debug("opened logsheet", ports.String("path", l.path))
	return nil
}

// Reopen closes the current handle; the next Append reopens (and if
// needed recreates) the path. Used after external rotation. It waits for
// an in-flight write only until ctx ends.
func (l *LogsheetFile) Reopen(ctx context.Context) error {
	if err := l.acquire(ctx); err != nil {
		return domain.SinkUnavailable("reopen logsheet", l.path, err)
	}
	defer l.release()
	return l.closeLocked()
}

// Shutdown releases the file handle, waiting for an in-flight write until
// ctx ends. A write still stuck after that keeps the handle open.
func (l *LogsheetFile) Shutdown(ctx context.Context) error {
	if err := l.acquire(ctx); err != nil {
		return domain.SinkUnavailable("close logsheet", l.path, err)
	}
	defer l.release()
	return l.closeLocked()
}

// Close is Shutdown bounded by DefaultCloseTimeout.
func (l *LogsheetFile) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCloseTimeout)
	defer cancel()
	return l.Shutdown(ctx)
}

func (l *LogsheetFile) closeLocked() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

var _ ports.ReopenableSink = (*LogsheetFile)(nil)
