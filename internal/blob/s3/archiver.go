package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkravets/signalbot/internal/domain"
)

// FillArchiver implements domain.Archiver. It exports aged fills to blob
// storage as JSONL and prunes them from the primary store once the upload
// succeeds, keeping the hot fills table small.
type FillArchiver struct {
	writer domain.BlobWriter
	fills  domain.FillStore
	audit  domain.AuditStore
}

// NewFillArchiver creates a FillArchiver.
func NewFillArchiver(writer domain.BlobWriter, fills domain.FillStore, audit domain.AuditStore) *FillArchiver {
	return &FillArchiver{
		writer: writer,
		fills:  fills,
		audit:  audit,
	}
}

// ArchiveFills uploads all fills executed before the cutoff to
// archive/fills/YYYY-MM.jsonl, then deletes them from the fill store. The
// delete runs only after the upload succeeded, so a failed upload leaves the
// primary store untouched. It returns the number of archived fills.
func (a *FillArchiver) ArchiveFills(ctx context.Context, before time.Time) (int64, error) {
	fills, err := a.fills.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}

	path := archivePath("fills", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive fills upload: %w", err)
	}

	pruned, err := a.fills.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills prune: %w", err)
	}

	count := int64(len(fills))
	if err := a.audit.Log(ctx, "archive.fills", map[string]any{
		"path":   path,
		"count":  count,
		"pruned": pruned,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive fills audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*FillArchiver)(nil)
