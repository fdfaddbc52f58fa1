package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onemodel/internal/blob"
	"github.com/roach88/onemodel/internal/config"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		ref  string
		id   int64
		isID bool
	}{
		{"-9223372036854775805", -9223372036854775805, true},
		{" 42 ", 42, true},
		{"0", 0, false},
		{"Alice", 0, false},
		{"12abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			id, ok := parseID(tt.ref)
			assert.Equal(t, tt.isID, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestPickOne(t *testing.T) {
	_, err := pickOne("group", "Team", nil)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), `no group named "Team"`)

	id, err := pickOne("group", "Team", []int64{-5})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), id)

	_, err = pickOne("group", "Team", []int64{-5, -6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestIsUsageError(t *testing.T) {
	assert.True(t, isUsageError(errors.New(`unknown flag: --nope`)))
	assert.True(t, isUsageError(errors.New(`accepts 1 arg(s), received 0`)))
	assert.False(t, isUsageError(errors.New("NOT_FOUND: entity")))
}

func TestLoadConfig_DatabaseFlag(t *testing.T) {
	unsetEnv(t, "ONEMODEL_DB_DRIVER", "ONEMODEL_SQLITE_PATH")
	opts := &RootOptions{Database: "/tmp/other.db"}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.DatabaseDSN())

	t.Setenv("ONEMODEL_DB_DRIVER", "postgres")
	t.Setenv("ONEMODEL_POSTGRES_DSN", "postgres://localhost/a")
	opts = &RootOptions{Database: "postgres://localhost/b"}
	cfg, err = opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/b", cfg.Database.DatabaseDSN())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}
	_, err := opts.loadConfig()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOpenBlobs(t *testing.T) {
	ctx := context.Background()

	b, err := openBlobs(ctx, config.ContentConfig{Driver: config.ContentDB})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = openBlobs(ctx, config.ContentConfig{Driver: config.ContentFS, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &blob.FS{}, b)
}
