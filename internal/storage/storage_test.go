package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"https://www.example.com/admissions/deadlines", "example_com_admissions_deadlines"},
		{"http://example.com/", "example_com"},
		{"https://example.com/search?q=a&b=c", "example_com_search_q_a_b_c"},
		{"https://", "index"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeFilename(tc.input))
		})
	}

	long := "https://example.com/" + strings.Repeat("a", 500)
	assert.Len(t, SanitizeFilename(long), 200)
}

func TestFileStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	ref, err := store.Put(context.Background(), "https://example.com/about", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "example_com_about.png", ref)

	data, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "https://example.com/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
