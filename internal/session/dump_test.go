package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/muurk/airtouch/internal/protocol"
)

func TestFrameDumperWritesNumberedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	d, err := NewFrameDumper(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	frame := protocol.RequestACStatus()
	d.Dump(frame)
	d.Dump(frame)

	for _, name := range []string{"message_20240309-140507_1.dump", "message_20240309-140507_2.dump"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, frame, got)
	}

	matches, err := filepath.Glob(filepath.Join(dir, DumpFilePattern))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestFrameDumperDisabled(t *testing.T) {
	d, err := NewFrameDumper("", nil)
	require.NoError(t, err)
	assert.Nil(t, d)
	d.Dump([]byte{1, 2, 3})
}
