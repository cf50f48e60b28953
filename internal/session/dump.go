package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DumpFilePattern matches the files written by a FrameDumper.
const DumpFilePattern = "message_*.dump"

// FrameDumper writes every validated frame to its own file for offline
// analysis. A nil *FrameDumper, or one with an empty directory, does nothing.
type FrameDumper struct {
	dir string
	log *zap.Logger
	seq atomic.Uint64
	now func() time.Time
}

// NewFrameDumper returns a dumper writing into dir, creating it if needed.
// It returns nil when dir is empty.
func NewFrameDumper(dir string, log *zap.Logger) (*FrameDumper, error) {
	if dir == "" {
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dump directory: %w", err)
	}
	return &FrameDumper{dir: dir, log: log, now: time.Now}, nil
}

// Dump writes raw to <dir>/message_<YYYYMMDD-HHMMSS>_<seq>.dump. Failures
// are logged and otherwise ignored.
func (d *FrameDumper) Dump(raw []byte) {
	if d == nil || d.dir == "" {
		return
	}
	seq := d.seq.Add(1)
	name := filepath.Join(d.dir, fmt.Sprintf("message_%s_%d.dump", d.now().Format("20060102-150405"), seq))
	if err := os.WriteFile(name, raw, 0o644); err != nil {
		d.log.Warn("Failed to write frame dump", zap.String("path", name), zap.Error(err))
		return
	}
	d.log.Debug("Frame dumped", zap.String("path", name), zap.Int("bytes", len(raw)))
}
