// Package textimport loads story text from files. HTML exports from web editors
// are converted to Markdown; anything else is taken as written.
package textimport

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// maxFileSize caps imported files well above the longest story the API accepts.
const maxFileSize = 1 << 20

// htmlTagPattern matches the block and inline tags editors emit.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// LooksLikeHTML reports whether s contains common HTML markup.
func LooksLikeHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// HTMLToMarkdown converts HTML to Markdown. Input without markup is returned
// trimmed but otherwise unchanged.
func HTMLToMarkdown(s string) (string, error) {
	if !LooksLikeHTML(s) {
		return strings.TrimSpace(s), nil
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// ReadFile loads story text from path. Files named *.html or *.htm, or whose
// content looks like HTML, are converted to Markdown.
func ReadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("%s is larger than %d bytes", path, maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	text := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		markdown, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", path, err)
		}
		return strings.TrimSpace(markdown), nil
	default:
		return HTMLToMarkdown(text)
	}
}
