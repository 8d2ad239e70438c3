package textimport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "  Once upon a time.\n", "Once upon a time."},
		{"angle brackets only", "a < b > c", "a < b > c"},
		{"strong", "<p>Hello <strong>world</strong></p>", "Hello **world**"},
		{"emphasis", "<p>A <em>quiet</em> night</p>", "A *quiet* night"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLToMarkdown(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	got, err := ReadFile(write("story.html", "<h1>Chapter One</h1><p>The tide came in.</p>"))
	require.NoError(t, err)
	assert.Contains(t, got, "# Chapter One")
	assert.Contains(t, got, "The tide came in.")
	assert.NotContains(t, got, "<p>")

	got, err = ReadFile(write("story.md", "# Chapter One\n\nThe tide came in.\n"))
	require.NoError(t, err)
	assert.Equal(t, "# Chapter One\n\nThe tide came in.", got)

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadFile(write("huge.txt", strings.Repeat("x", maxFileSize+1)))
	assert.Error(t, err)
}
