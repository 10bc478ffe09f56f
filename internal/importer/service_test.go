package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/assetdesk/assetdesk/internal/domain"
)

type stubAssetStore struct {
	mu      sync.Mutex
	assets  map[string]domain.Asset
	patches map[string]domain.AssetPatch

	listTagsErr   error
	failBatchTags map[string]bool
	failOneTags   map[string]bool
}

func newStubAssetStore(seedTags ...string) *stubAssetStore {
	store := &stubAssetStore{
		assets:  make(map[string]domain.Asset),
		patches: make(map[string]domain.AssetPatch),
	}
	for _, tag := range seedTags {
		store.assets[tag] = domain.NewAsset(tag)
	}
	return store
}

func (s *stubAssetStore) ListTags(ctx context.Context) ([]string, error) {
	if s.listTagsErr != nil {
		return nil, s.listTagsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]string, 0, len(s.assets))
	for tag := range s.assets {
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *stubAssetStore) GetByTag(ctx context.Context, tag string) (domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[tag]
	if !ok {
		return domain.Asset{}, fmt.Errorf("asset %s not found", tag)
	}
	return asset, nil
}

func (s *stubAssetStore) InsertMany(ctx context.Context, assets []domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, asset := range assets {
		if s.failBatchTags[asset.AssetTag] {
			return fmt.Errorf("batch insert rejected near %s", asset.AssetTag)
		}
	}
	for _, asset := range assets {
		s.assets[asset.AssetTag] = asset
	}
	return nil
}

func (s *stubAssetStore) InsertOne(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOneTags[asset.AssetTag] || s.failBatchTags[asset.AssetTag] {
		return domain.Asset{}, fmt.Errorf("insert rejected for %s", asset.AssetTag)
	}
	s.assets[asset.AssetTag] = asset
	return asset, nil
}

func (s *stubAssetStore) UpdateByTag(ctx context.Context, tag string, patch domain.AssetPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[tag]; !ok {
		return fmt.Errorf("asset %s not found", tag)
	}
	s.patches[tag] = patch
	return nil
}

func (s *stubAssetStore) ListForExport(ctx context.Context, limit int) ([]domain.AssetExportRecord, int, error) {
	return nil, 0, nil
}

func (s *stubAssetStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.assets)), nil
}

type stubLookupStore struct {
	mu        sync.Mutex
	entities  map[domain.LookupKind][]domain.LookupEntity
	inserts   int
	insertErr error
	listErr   error
}

func newStubLookupStore() *stubLookupStore {
	return &stubLookupStore{entities: make(map[domain.LookupKind][]domain.LookupEntity)}
}

func (s *stubLookupStore) ListAll(ctx context.Context, kind domain.LookupKind) ([]domain.LookupEntity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LookupEntity{}, s.entities[kind]...), nil
}

func (s *stubLookupStore) Insert(ctx context.Context, kind domain.LookupKind, entity domain.LookupEntity) (domain.LookupEntity, error) {
	if s.insertErr != nil {
		return domain.LookupEntity{}, s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[kind] = append(s.entities[kind], entity)
	s.inserts++
	return entity, nil
}

func (s *stubLookupStore) find(kind domain.LookupKind, name string) (domain.LookupEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entity := range s.entities[kind] {
		if strings.EqualFold(entity.Name, name) {
			return entity, true
		}
	}
	return domain.LookupEntity{}, false
}

type stubLogStore struct {
	mu      sync.Mutex
	entries []domain.ImportLogEntry
}

func (s *stubLogStore) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogStore) List(ctx context.Context, fileName string, limit, offset int) ([]domain.ImportLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImportLogEntry
	for _, entry := range s.entries {
		if entry.FileName == fileName {
			out = append(out, entry)
		}
	}
	return out, nil
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mustRows(t *testing.T, csv string) []Row {
	t.Helper()
	rows, err := ParseFile("test.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return rows
}

func TestPreviewClassification(t *testing.T) {
	assets := newStubAssetStore("AST-200")
	service := NewService(assets, newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	rows := mustRows(t, strings.Join([]string{
		"Asset Tag ID,Name,Status,Mystery Column",
		"AST-100,Laptop,available,x",
		"AST-200,Monitor,frobnicated,y",
		",Orphan,,z",
		"",
	}, "\n"))

	validated, err := service.Preview(context.Background(), rows)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(validated) != 3 {
		t.Fatalf("got %d validated rows, want 3", len(validated))
	}

	if validated[0].RowNum != 2 || validated[0].Status != RowStatusNew {
		t.Errorf("row 0 = (%d, %s), want (2, new)", validated[0].RowNum, validated[0].Status)
	}
	if validated[1].RowNum != 3 || validated[1].Status != RowStatusUpdate {
		t.Errorf("row 1 = (%d, %s), want (3, update)", validated[1].RowNum, validated[1].Status)
	}
	if len(validated[1].Warnings) != 1 || !strings.Contains(validated[1].Warnings[0], "frobnicated") {
		t.Errorf("row 1 warnings = %v, want one about unrecognized status", validated[1].Warnings)
	}
	if validated[2].RowNum != 4 || validated[2].Status != RowStatusError || validated[2].Error != requiredTagMessage {
		t.Errorf("row 2 = (%d, %s, %q), want (4, error, %q)",
			validated[2].RowNum, validated[2].Status, validated[2].Error, requiredTagMessage)
	}

	for _, vr := range validated {
		if len(vr.MappedColumns) != 3 {
			t.Errorf("row %d mapped = %v, want 3 recognized headers", vr.RowNum, vr.MappedColumns)
		}
		if len(vr.UnmappedColumns) != 1 || vr.UnmappedColumns[0] != "Mystery Column" {
			t.Errorf("row %d unmapped = %v, want [Mystery Column]", vr.RowNum, vr.UnmappedColumns)
		}
	}
}

func TestCommitEndToEnd(t *testing.T) {
	assets := newStubAssetStore("AST-200")
	lookups := newStubLookupStore()
	logs := &stubLogStore{}
	service := NewService(assets, lookups, logs, WithLogger(discardLogger()))

	rows := mustRows(t, strings.Join([]string{
		"Asset Tag ID,Name,Cost,Purchase Date,Category,Status",
		`AST-100,Laptop,"1.500,00",01/02/24,Hardware,`,
		"AST-200,,,,,checked out",
		",Orphan,,,,",
	}, "\n"))

	result, err := service.Commit(context.Background(), CommitRequest{FileName: "assets.csv", Rows: rows})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if result.Success != 2 {
		t.Errorf("success = %d, want 2", result.Success)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 4 || result.Errors[0].Error != requiredTagMessage {
		t.Fatalf("errors = %+v, want row 4 %q", result.Errors, requiredTagMessage)
	}

	inserted, err := assets.GetByTag(context.Background(), "AST-100")
	if err != nil {
		t.Fatalf("AST-100 not inserted: %v", err)
	}
	if inserted.PurchasePrice == nil || !inserted.PurchasePrice.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("AST-100 price = %v, want 1500.00", inserted.PurchasePrice)
	}
	if inserted.PurchaseDate == nil || inserted.PurchaseDate.Format("2006-01-02") != "2024-02-01" {
		t.Errorf("AST-100 purchase date = %v, want 2024-02-01 (day-first default)", inserted.PurchaseDate)
	}
	if inserted.CategoryID == nil {
		t.Error("AST-100 category not resolved")
	}
	if _, ok := lookups.find(domain.LookupCategory, "Hardware"); !ok {
		t.Error("Hardware category was not auto-created")
	}

	patch, ok := assets.patches["AST-200"]
	if !ok {
		t.Fatal("AST-200 was not updated")
	}
	if patch.Status == nil || *patch.Status != domain.StatusInUse {
		t.Errorf("AST-200 status patch = %v, want in_use", patch.Status)
	}
	if patch.Name != nil {
		t.Errorf("AST-200 name patch = %v, want nil (empty cells leave stored values alone)", patch.Name)
	}

	logged, err := service.Logs(context.Background(), "assets.csv", 10, 0)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logged) != 1 || logged[0].RowNumber == nil || *logged[0].RowNumber != 4 {
		t.Fatalf("logged = %+v, want one entry for row 4", logged)
	}
}

func TestCommitBatchFallbackIsolation(t *testing.T) {
	assets := newStubAssetStore()
	assets.failBatchTags = map[string]bool{"AST-3": true}
	service := NewService(assets, newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	lines := []string{"Asset Tag ID,Name"}
	for i := 1; i <= 5; i++ {
		lines = append(lines, fmt.Sprintf("AST-%d,Item %d", i, i))
	}
	rows := mustRows(t, strings.Join(lines, "\n"))

	result, err := service.Commit(context.Background(), CommitRequest{FileName: "assets.csv", Rows: rows})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if result.Success != 4 {
		t.Errorf("success = %d, want 4 (one bad row must not sink its chunk)", result.Success)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 4 {
		t.Fatalf("errors = %+v, want exactly row 4", result.Errors)
	}
	for _, tag := range []string{"AST-1", "AST-2", "AST-4", "AST-5"} {
		if _, err := assets.GetByTag(context.Background(), tag); err != nil {
			t.Errorf("%s missing after fallback: %v", tag, err)
		}
	}
}

func TestCommitEmptyPatchIsNoOpSuccess(t *testing.T) {
	assets := newStubAssetStore("AST-9")
	service := NewService(assets, newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	rows := mustRows(t, "Asset Tag ID\nAST-9\n")

	result, err := service.Commit(context.Background(), CommitRequest{FileName: "assets.csv", Rows: rows})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Success != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want one no-op success", result)
	}
	if _, ok := assets.patches["AST-9"]; ok {
		t.Fatal("empty patch must not hit the store")
	}
}

func TestCommitMonthFirstOption(t *testing.T) {
	assets := newStubAssetStore()
	service := NewService(assets, newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	rows := mustRows(t, "Asset Tag ID,Purchase Date\nAST-1,01/02/24\n")

	_, err := service.Commit(context.Background(), CommitRequest{
		FileName: "assets.csv",
		Rows:     rows,
		Options:  Options{MonthFirst: true},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	inserted, err := assets.GetByTag(context.Background(), "AST-1")
	if err != nil {
		t.Fatalf("AST-1 not inserted: %v", err)
	}
	if inserted.PurchaseDate == nil || inserted.PurchaseDate.Format("2006-01-02") != "2024-01-02" {
		t.Fatalf("purchase date = %v, want 2024-01-02 under month-first", inserted.PurchaseDate)
	}
}

func TestCommitProgressReporting(t *testing.T) {
	assets := newStubAssetStore()
	service := NewService(assets, newStubLookupStore(), &stubLogStore{},
		WithLogger(discardLogger()), WithChunkSize(1))

	rows := mustRows(t, "Asset Tag ID\nAST-1\nAST-2\nAST-3\n")

	var calls []int
	_, err := service.Commit(context.Background(), CommitRequest{
		FileName: "assets.csv",
		Rows:     rows,
		Progress: func(done, total int) {
			if total != 3 {
				t.Errorf("total = %d, want 3", total)
			}
			calls = append(calls, done)
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("progress calls = %v, want one per chunk", calls)
	}
	for i, done := range calls {
		if done != i+1 {
			t.Fatalf("progress calls = %v, want monotonic 1..3", calls)
		}
	}
}

func TestCommitCancelled(t *testing.T) {
	assets := newStubAssetStore()
	service := NewService(assets, newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := mustRows(t, "Asset Tag ID\nAST-1\n")
	_, err := service.Commit(ctx, CommitRequest{FileName: "assets.csv", Rows: rows})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCommitListTagsFailureIsFatal(t *testing.T) {
	assets := newStubAssetStore()
	assets.listTagsErr = errors.New("store down")
	service := NewService(assets, newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	rows := mustRows(t, "Asset Tag ID\nAST-1\n")
	if _, err := service.Commit(context.Background(), CommitRequest{FileName: "assets.csv", Rows: rows}); err == nil {
		t.Fatal("expected error when the tag snapshot cannot be fetched")
	}
}

func TestCommitNoRows(t *testing.T) {
	service := NewService(newStubAssetStore(), newStubLookupStore(), &stubLogStore{}, WithLogger(discardLogger()))

	result, err := service.Commit(context.Background(), CommitRequest{FileName: "assets.csv"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Success != 0 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
}
