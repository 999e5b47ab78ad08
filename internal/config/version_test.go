package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"1.2.3", Version{1, 2, 3}, false},
		{"v1.2.3", Version{1, 2, 3}, false},
		{" 0.10.0 ", Version{0, 10, 0}, false},
		{"2.1", Version{2, 1, 0}, false},
		{"1.2.3-beta.1", Version{}, true},
		{"1.2.3+build", Version{}, true},
		{"latest", Version{}, true},
		{"", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersion_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Version Version `json:"version"`
	}{Version{1, 2, 3}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.2.3"}`, string(data))

	var decoded struct {
		Version Version `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"version":"v4.5.6"}`), &decoded))
	assert.Equal(t, Version{4, 5, 6}, decoded.Version)
}

func TestVersion_CompareAndBump(t *testing.T) {
	assert.Equal(t, Version{1, 2, 4}, Version{1, 2, 3}.BumpPatch())
	assert.Equal(t, 1, Version{1, 10, 0}.Compare(Version{1, 9, 9}))
	assert.Equal(t, 0, Version{1, 0, 0}.Compare(Version{1, 0, 0}))
	assert.Equal(t, -1, Version{0, 9, 0}.Compare(Version{1, 0, 0}))
}

func TestDefaultVersion(t *testing.T) {
	t.Run("outside a repository", func(t *testing.T) {
		v, err := DefaultVersion(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, InitialVersion, v)
	})

	t.Run("latest version tag is bumped", func(t *testing.T) {
		dir := t.TempDir()
		repo, err := git.PlainInit(dir, false)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("readme"), 0o644))
		wt, err := repo.Worktree()
		require.NoError(t, err)
		_, err = wt.Add("README")
		require.NoError(t, err)

		hash, err := wt.Commit("initial", &git.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)

		for _, tag := range []string{"v1.2.0", "v1.10.3", "nightly", "v1.9.9"} {
			_, err := repo.CreateTag(tag, hash, nil)
			require.NoError(t, err)
		}

		v, err := DefaultVersion(filepath.Join(dir))
		require.NoError(t, err)
		assert.Equal(t, Version{1, 10, 4}, v)
	})
}
