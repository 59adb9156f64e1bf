// internal/agent/exporter/file_exporter.go
// File exporter writes each folded-text snapshot to a directory on the local
// filesystem.  The filename pattern follows
//
//	<prefix>-20060102T150405.000.folded[.gz]
//
// where the timestamp is UTC by default.  Compression can be toggled; this
// exporter is primarily for offline analysis and debugging when a monitor is
// unavailable, matching spec.md §6's --folded-save/--folded-file surface.
package exporter

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileConfig controls exporter behaviour.
type FileConfig struct {
	Dir       string         // destination directory (created if missing)
	Prefix    string         // filename prefix (default "flamecore")
	Compress  bool           // gzip output
	Timezone  *time.Location // nil => UTC
	FlushSync bool           // fsync file after write
	Perm      os.FileMode    // file mode (default 0644)
}

// fileExporter implements agent.Exporter.
type fileExporter struct {
	cfg FileConfig
}

// NewFileExporter validates config and returns exporter.
func NewFileExporter(cfg FileConfig) (*fileExporter, error) {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "flamecore"
	}
	if cfg.Perm == 0 {
		cfg.Perm = 0o644
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &fileExporter{cfg: cfg}, nil
}

// Export writes the folded-text snapshot to a new timestamped file; blocks
// until the write completes. An empty snapshot is skipped rather than
// writing a zero-byte file.
func (e *fileExporter) Export(_ context.Context, folded string) error {
	if folded == "" {
		return nil
	}
	ts := time.Now().In(e.cfg.Timezone).Format("20060102T150405.000")
	fname := fmt.Sprintf("%s-%s.folded", e.cfg.Prefix, ts)
	if e.cfg.Compress {
		fname += ".gz"
	}
	path := filepath.Join(e.cfg.Dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, e.cfg.Perm)
	if err != nil {
		return err
	}
	defer f.Close()

	data := []byte(folded)
	if e.cfg.Compress {
		gw := gzip.NewWriter(f)
		if _, err := gw.Write(data); err != nil {
			_ = gw.Close()
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
	} else {
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
	if e.cfg.FlushSync {
		_ = f.Sync()
	}
	return nil
}

// Close is a no-op.
func (e *fileExporter) Close() error { return nil }
