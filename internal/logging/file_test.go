package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFile_WritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	f := RotatingFile(path, 0, 3)

	log := New(f, "text", "info")
	log.Info(context.Background(), "author created", "actor_id", 1, "author_id", 3)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg="author created" actor_id=1 author_id=3`)
}
