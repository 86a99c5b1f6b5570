package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mkravets/signalbot/internal/domain"
)

type fakeFillStore struct {
	fills   []domain.Fill
	listErr error
	pruned  bool
}

func (s *fakeFillStore) Create(ctx context.Context, f domain.Fill) error { return nil }

func (s *fakeFillStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Fill, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Fill
	for _, f := range s.fills {
		if f.ExecutedAt.Before(before) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeFillStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	s.pruned = true
	var kept []domain.Fill
	var n int64
	for _, f := range s.fills {
		if f.ExecutedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, f)
	}
	s.fills = kept
	return n, nil
}

type fakeBlobWriter struct {
	path    string
	payload []byte
	err     error
}

func (w *fakeBlobWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.path = path
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.payload = b
	return nil
}

type fakeAuditStore struct {
	events []string
}

func (s *fakeAuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	s.events = append(s.events, event)
	return nil
}

func (s *fakeAuditStore) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveFills(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeFillStore{fills: []domain.Fill{
		{ID: "old-1", AssetID: "MintA", ExecutedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "old-2", AssetID: "MintB", ExecutedAt: cutoff.Add(-time.Hour)},
		{ID: "new-1", AssetID: "MintA", ExecutedAt: cutoff.Add(time.Hour)},
	}}
	writer := &fakeBlobWriter{}
	audit := &fakeAuditStore{}

	a := NewFillArchiver(writer, store, audit)
	count, err := a.ArchiveFills(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveFills: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if writer.path != "archive/fills/2026-03.jsonl" {
		t.Errorf("path = %q", writer.path)
	}

	// Payload is one JSON object per line.
	var lines int
	sc := bufio.NewScanner(bytes.NewReader(writer.payload))
	for sc.Scan() {
		var f domain.Fill
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			t.Errorf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("payload lines = %d, want 2", lines)
	}

	if len(store.fills) != 1 || store.fills[0].ID != "new-1" {
		t.Errorf("store after prune = %+v, want only new-1", store.fills)
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.fills" {
		t.Errorf("audit events = %v", audit.events)
	}
}

func TestArchiveFillsNothingToArchive(t *testing.T) {
	store := &fakeFillStore{}
	writer := &fakeBlobWriter{}

	a := NewFillArchiver(writer, store, &fakeAuditStore{})
	count, err := a.ArchiveFills(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveFills: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if writer.path != "" {
		t.Errorf("uploaded %q with nothing to archive", writer.path)
	}
}

func TestArchiveFillsUploadFailureKeepsRows(t *testing.T) {
	cutoff := time.Now()
	store := &fakeFillStore{fills: []domain.Fill{
		{ID: "old-1", ExecutedAt: cutoff.Add(-time.Hour)},
	}}
	writer := &fakeBlobWriter{err: errors.New("bucket gone")}

	a := NewFillArchiver(writer, store, &fakeAuditStore{})
	if _, err := a.ArchiveFills(context.Background(), cutoff); err == nil {
		t.Fatal("ArchiveFills succeeded despite upload failure")
	}
	if store.pruned {
		t.Error("rows pruned after failed upload")
	}
}
