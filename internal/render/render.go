package render

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
)

var (
	markdown = goldmark.New()
	policy   = bluemonday.UGCPolicy()
)

// HTML converts a Markdown reply to sanitized HTML.
func HTML(reply string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(reply), &buf); err != nil {
		return "", errors.Wrap(err, "failed to convert markdown")
	}
	return string(policy.SanitizeBytes(buf.Bytes())), nil
}
