// Package archive streams a case and its documents as a zip file.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"casekeeper/internal/cases/models"
)

const (
	detailsEntry    = "case-details.txt"
	documentsPrefix = "documents/"
	failedMarker    = "FAILED_TO_DOWNLOAD: "
)

// Fetcher returns the bytes of one document's ledger record.
type Fetcher func(ctx context.Context, doc models.Document) ([]byte, error)

// Summary describes what a finished archive contains.
type Summary struct {
	Included int
	Failed   []models.FileFailure
}

// Job is a prepared archive of one case. Nothing is fetched until WriteTo.
type Job struct {
	c      *models.Case
	fetch  Fetcher
	onDone func(ctx context.Context, s Summary, err error)
}

type Option func(*Job)

// WithCompletion registers a hook called once WriteTo returns.
func WithCompletion(fn func(ctx context.Context, s Summary, err error)) Option {
	return func(j *Job) {
		j.onDone = fn
	}
}

func NewJob(c *models.Case, fetch Fetcher, opts ...Option) *Job {
	j := &Job{c: c, fetch: fetch}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// FileName is the attachment name offered to the client.
func (j *Job) FileName() string {
	return fmt.Sprintf("Case-%s.zip", j.c.CaseNumber)
}

// WriteTo writes the zip to w. Each document is fetched exactly once, in
// case order. A failed fetch is recorded as a FAILED_ marker entry. The
// central directory is written only after every fetch was attempted; on
// cancellation WriteTo returns ctx.Err() and leaves the archive unfinished.
func (j *Job) WriteTo(ctx context.Context, w io.Writer) (summary Summary, err error) {
	if j.onDone != nil {
		defer func() { j.onDone(ctx, summary, err) }()
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	if err := writeEntry(zw, detailsEntry, j.c.UpdatedAt, []byte(Details(j.c))); err != nil {
		return summary, err
	}

	names := newNameSet()
	for _, doc := range j.c.Documents {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		name := sanitize(doc.Name)
		data, fetchErr := j.fetch(ctx, doc)
		if fetchErr != nil {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			reason := fetchErr.Error()
			summary.Failed = append(summary.Failed, models.FileFailure{Name: doc.Name, Reason: reason})
			marker := documentsPrefix + names.claim("FAILED_"+name+".txt")
			if err := writeEntry(zw, marker, doc.UploadedAt, []byte(failedMarker+reason)); err != nil {
				return summary, err
			}
			continue
		}
		if err := writeEntry(zw, documentsPrefix+names.claim(name), doc.UploadedAt, data); err != nil {
			return summary, err
		}
		summary.Included++
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if err := zw.Close(); err != nil {
		return summary, fmt.Errorf("finalize archive: %w", err)
	}
	return summary, nil
}

func writeEntry(zw *zip.Writer, name string, modified time.Time, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modified.IsZero() {
		hdr.Modified = modified.UTC()
	}
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Details renders the case summary entry.
func Details(c *models.Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case Number: %s\n", c.CaseNumber)
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Description: %s\n", c.Description)
	fmt.Fprintf(&b, "Priority: %s\n", c.Priority)
	fmt.Fprintf(&b, "Status: %s\n", c.Status)
	fmt.Fprintf(&b, "Created At: %s\n", formatTime(c.CreatedAt))
	fmt.Fprintf(&b, "Last Updated: %s\n", formatTime(c.UpdatedAt))
	b.WriteString("\nUpdates:\n")
	if len(c.Updates) == 0 {
		b.WriteString("No updates\n")
		return b.String()
	}
	for _, u := range c.Updates {
		fmt.Fprintf(&b, "[%s] %s\n", formatTime(u.Timestamp), u.Text)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// sanitize strips directories so a stored name cannot escape documents/.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(path.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return "document"
	}
	return base
}

type nameSet map[string]int

func newNameSet() nameSet { return make(nameSet) }

// claim returns name, or name with a numeric suffix when already used.
func (s nameSet) claim(name string) string {
	n := s[name]
	s[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
	if _, taken := s[candidate]; taken {
		return s.claim(candidate)
	}
	s[candidate] = 1
	return candidate
}
