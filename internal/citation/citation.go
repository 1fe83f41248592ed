package citation

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Annotation marks a span of generated text that cites a source. FileID is
// empty when the annotation does not reference an uploaded file.
type Annotation struct {
	Text   string
	FileID string
}

// Entry is one line of the citation list appended to a reply.
type Entry struct {
	Index    int
	Filename string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%d] %s", e.Index, e.Filename)
}

// FileResolver looks up the display name of an uploaded file.
type FileResolver interface {
	FileName(ctx context.Context, fileID string) (string, error)
}

func marker(idx int) string {
	return fmt.Sprintf("[%d]", idx)
}

// Rewrite replaces the first occurrence of each annotation's text with an
// [idx] marker and appends the list of cited files. Indices follow the order
// of annotations, including those without a file. A failing lookup aborts the
// whole rewrite.
func Rewrite(ctx context.Context, text string, annotations []Annotation, files FileResolver) (string, error) {
	if len(annotations) == 0 {
		return text, nil
	}

	entries := make([]Entry, 0, len(annotations))

	for idx, annotation := range annotations {
		// an empty needle would match between every rune
		if annotation.Text != "" {
			text = strings.Replace(text, annotation.Text, marker(idx), 1)
		}

		if annotation.FileID == "" {
			continue
		}

		filename, err := files.FileName(ctx, annotation.FileID)
		if err != nil {
			return "", errors.Wrapf(err, "failed to resolve cited file %s", annotation.FileID)
		}
		entries = append(entries, Entry{Index: idx, Filename: filename})
	}

	if len(entries) == 0 {
		return text, nil
	}

	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.String()
	}

	return text + "\n\n" + strings.Join(lines, "\n"), nil
}
