package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"

	// multipartThreshold switches uploads above this size to the multipart
	// uploader.
	multipartThreshold = 16 * 1024 * 1024
)

// FilledSwapArchiveStore is the part of the filled swap store the archiver
// needs.
type FilledSwapArchiveStore interface {
	ListUnarchivedBefore(ctx context.Context, before time.Time) ([]domain.FilledSwap, error)
	MarkArchived(ctx context.Context, keys []domain.SwapKey) error
}

// ArchiveImpl implements domain.Archiver. It serializes unarchived filled
// swaps older than a cutoff to JSONL, uploads one object per run and marks
// the uploaded swaps archived. Deleting rows is left to the caller.
type ArchiveImpl struct {
	writer domain.BlobWriter
	swaps  FilledSwapArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl. audit may be nil.
func NewArchiver(writer domain.BlobWriter, swaps FilledSwapArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, swaps: swaps, audit: audit}
}

// archiveRecord is the JSONL row layout. Amounts are base-10 strings.
type archiveRecord struct {
	Pair          string    `json:"pair"`
	ID            string    `json:"id"`
	MakerProvider string    `json:"maker_provider"`
	MakerContract string    `json:"maker_contract"`
	MakerAmount   string    `json:"maker_amount"`
	TakerProvider string    `json:"taker_provider"`
	TakerContract string    `json:"taker_contract"`
	TakerAmount   string    `json:"taker_amount"`
	FilledAt      time.Time `json:"filled_at"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func toArchiveRecord(fs domain.FilledSwap) archiveRecord {
	r := archiveRecord{
		Pair:          fs.PairName,
		ID:            fs.ID,
		MakerProvider: fs.Maker.Provider,
		MakerContract: string(fs.Maker.Contract),
		TakerProvider: fs.Taker.Provider,
		TakerContract: string(fs.Taker.Contract),
		FilledAt:      fs.FilledAt.UTC(),
		RecordedAt:    fs.RecordedAt.UTC(),
	}
	if fs.Maker.Amount != nil {
		r.MakerAmount = fs.Maker.Amount.String()
	}
	if fs.Taker.Amount != nil {
		r.TakerAmount = fs.Taker.Amount.String()
	}
	return r
}

// ArchiveFilledSwaps uploads every unarchived filled swap older than before
// to archive/filled_swaps/YYYY-MM/<cutoff>.jsonl, marks them archived,
// records the run in the audit log and returns the uploaded keys.
//
// If marking fails after the upload the error is returned and the next run
// uploads the same swaps again into a new object. Swaps are never lost.
func (a *ArchiveImpl) ArchiveFilledSwaps(ctx context.Context, before time.Time) ([]domain.SwapKey, error) {
	swaps, err := a.swaps.ListUnarchivedBefore(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive filled swaps query: %w", err)
	}
	if len(swaps) == 0 {
		return nil, nil
	}

	records := make([]archiveRecord, len(swaps))
	keys := make([]domain.SwapKey, len(swaps))
	for i, s := range swaps {
		records[i] = toArchiveRecord(s)
		keys[i] = s.Key()
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive filled swaps marshal: %w", err)
	}

	path := archivePath("filled_swaps", before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive filled swaps upload: %w", err)
	}

	if err := a.swaps.MarkArchived(ctx, keys); err != nil {
		return nil, fmt.Errorf("s3blob: archive filled swaps mark %s: %w", path, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.filled_swaps", map[string]any{
			"path":   path,
			"count":  int64(len(keys)),
			"bytes":  len(buf),
			"before": before.UTC().Format(time.RFC3339),
		}); err != nil {
			return keys, fmt.Errorf("s3blob: archive filled swaps audit log: %w", err)
		}
	}
	return keys, nil
}

// archivePath builds the object key for one archive run, partitioned by the
// cutoff's month:
//
//	archive/filled_swaps/2025-01/20250131T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01"), before.Format("20060102T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
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
var _ domain.Archiver = (*ArchiveImpl)(nil)
