package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

type fakeWriter struct {
	path        string
	contentType string
	body        []byte
	multipart   bool
	err         error
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.path, w.contentType = path, contentType
	w.body, _ = io.ReadAll(data)
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	w.multipart = true
	w.path = path
	w.body, _ = io.ReadAll(data)
	return nil
}

type fakeSwapStore struct {
	swaps   []domain.FilledSwap
	before  time.Time
	marked  []domain.SwapKey
	markErr error
}

func (s *fakeSwapStore) ListUnarchivedBefore(_ context.Context, before time.Time) ([]domain.FilledSwap, error) {
	s.before = before
	return s.swaps, nil
}

func (s *fakeSwapStore) MarkArchived(_ context.Context, keys []domain.SwapKey) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, keys...)
	return nil
}

type fakeAudit struct {
	events  []string
	details []map[string]any
}

func (a *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	a.details = append(a.details, detail)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func filledSwap(id string) domain.FilledSwap {
	amt, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	return domain.FilledSwap{
		Swap: domain.Swap{
			ID:       id,
			Maker:    domain.Leg{Provider: "hx1", Contract: "cxbb", Amount: big.NewInt(2_000_000)},
			Taker:    domain.Leg{Provider: "hx2", Contract: "cxaa", Amount: amt},
			FilledAt: time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC),
		},
		PairName:   "cxaa/cxbb",
		RecordedAt: time.Date(2024, 12, 30, 10, 0, 5, 0, time.UTC),
	}
}

func TestArchiveFilledSwaps(t *testing.T) {
	w := &fakeWriter{}
	store := &fakeSwapStore{swaps: []domain.FilledSwap{filledSwap("0x1"), filledSwap("0x2")}}
	audit := &fakeAudit{}
	before := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	keys, err := NewArchiver(w, store, audit).ArchiveFilledSwaps(context.Background(), before)
	require.NoError(t, err)
	want := []domain.SwapKey{{Pair: "cxaa/cxbb", ID: "0x1"}, {Pair: "cxaa/cxbb", ID: "0x2"}}
	assert.Equal(t, want, keys)
	assert.Equal(t, want, store.marked)
	assert.Equal(t, before, store.before)

	assert.Equal(t, "archive/filled_swaps/2025-01/20250131T000000Z.jsonl", w.path)
	assert.Equal(t, jsonlContentType, w.contentType)
	assert.False(t, w.multipart)

	sc := bufio.NewScanner(bytes.NewReader(w.body))
	var lines []archiveRecord
	for sc.Scan() {
		var r archiveRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		lines = append(lines, r)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "0x1", lines[0].ID)
	assert.Equal(t, "123456789012345678901234567890", lines[0].TakerAmount)
	assert.Equal(t, "2000000", lines[0].MakerAmount)
	assert.Equal(t, "cxaa/cxbb", lines[0].Pair)

	require.Equal(t, []string{"archive.filled_swaps"}, audit.events)
	assert.Equal(t, int64(2), audit.details[0]["count"])
	assert.Equal(t, w.path, audit.details[0]["path"])
}

func TestArchiveFilledSwapsNothingToDo(t *testing.T) {
	w := &fakeWriter{}
	audit := &fakeAudit{}
	keys, err := NewArchiver(w, &fakeSwapStore{}, audit).ArchiveFilledSwaps(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, w.path)
	assert.Empty(t, audit.events)
}

func TestArchiveFilledSwapsUploadFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("access denied")}
	audit := &fakeAudit{}
	store := &fakeSwapStore{swaps: []domain.FilledSwap{filledSwap("0x1")}}

	keys, err := NewArchiver(w, store, audit).ArchiveFilledSwaps(context.Background(), time.Now())
	require.Error(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, store.marked)
	assert.Empty(t, audit.events)
}

func TestArchiveFilledSwapsMarkFailureReportsNoKeys(t *testing.T) {
	w := &fakeWriter{}
	audit := &fakeAudit{}
	store := &fakeSwapStore{swaps: []domain.FilledSwap{filledSwap("0x1")}, markErr: errors.New("conn closed")}

	keys, err := NewArchiver(w, store, audit).ArchiveFilledSwaps(context.Background(), time.Now())
	require.Error(t, err)
	assert.Empty(t, keys)
	assert.NotEmpty(t, w.path)
	assert.Empty(t, audit.events)
}

func TestArchivePathUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	before := time.Date(2025, 2, 1, 3, 0, 0, 0, loc)
	assert.Equal(t, "archive/filled_swaps/2025-01/20250131T180000Z.jsonl", archivePath("filled_swaps", before))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
}
