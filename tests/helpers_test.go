package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assetdesk/assetdesk/internal/domain"
	"github.com/assetdesk/assetdesk/internal/export"
	"github.com/assetdesk/assetdesk/internal/importer"
)

// memoryStore is an in-memory implementation of the asset, lookup, and
// import-log repositories so the HTTP surface can be exercised end to end
// without a database.
type memoryStore struct {
	mu      sync.Mutex
	assets  map[string]domain.Asset
	lookups map[domain.LookupKind][]domain.LookupEntity
	logs    []domain.ImportLogEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		assets:  make(map[string]domain.Asset),
		lookups: make(map[domain.LookupKind][]domain.LookupEntity),
	}
}

func (m *memoryStore) ListTags(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags := make([]string, 0, len(m.assets))
	for tag := range m.assets {
		tags = append(tags, tag)
	}
	return tags, nil
}

func (m *memoryStore) GetByTag(ctx context.Context, tag string) (domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[tag]
	if !ok {
		return domain.Asset{}, fmt.Errorf("asset %s not found", tag)
	}
	return asset, nil
}

func (m *memoryStore) InsertMany(ctx context.Context, assets []domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, asset := range assets {
		if _, exists := m.assets[asset.AssetTag]; exists {
			return fmt.Errorf("duplicate asset tag %s", asset.AssetTag)
		}
	}
	for _, asset := range assets {
		m.assets[asset.AssetTag] = asset
	}
	return nil
}

func (m *memoryStore) InsertOne(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.assets[asset.AssetTag]; exists {
		return domain.Asset{}, fmt.Errorf("duplicate asset tag %s", asset.AssetTag)
	}
	m.assets[asset.AssetTag] = asset
	return asset, nil
}

func (m *memoryStore) UpdateByTag(ctx context.Context, tag string, patch domain.AssetPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[tag]
	if !ok {
		return fmt.Errorf("asset %s not found", tag)
	}

	if patch.Name != nil {
		asset.Name = patch.Name
	}
	if patch.Description != nil {
		asset.Description = patch.Description
	}
	if patch.Model != nil {
		asset.Model = patch.Model
	}
	if patch.SerialNumber != nil {
		asset.SerialNumber = patch.SerialNumber
	}
	if patch.Notes != nil {
		asset.Notes = patch.Notes
	}
	if patch.PurchasePrice != nil {
		asset.PurchasePrice = patch.PurchasePrice
	}
	if patch.PurchaseDate != nil {
		asset.PurchaseDate = patch.PurchaseDate
	}
	if patch.WarrantyExpiry != nil {
		asset.WarrantyExpiry = patch.WarrantyExpiry
	}
	if patch.Status != nil {
		asset.Status = *patch.Status
	}
	if patch.MakeID != nil {
		asset.MakeID = patch.MakeID
	}
	if patch.CategoryID != nil {
		asset.CategoryID = patch.CategoryID
	}
	if patch.SiteID != nil {
		asset.SiteID = patch.SiteID
	}
	if patch.LocationID != nil {
		asset.LocationID = patch.LocationID
	}
	if patch.DepartmentID != nil {
		asset.DepartmentID = patch.DepartmentID
	}
	if patch.VendorID != nil {
		asset.VendorID = patch.VendorID
	}
	asset.UpdatedAt = time.Now()

	m.assets[tag] = asset
	return nil
}

func (m *memoryStore) ListForExport(ctx context.Context, limit int) ([]domain.AssetExportRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	assets := make([]domain.Asset, 0, len(m.assets))
	for _, asset := range m.assets {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].UpdatedAt.After(assets[j].UpdatedAt)
	})

	total := len(assets)
	if len(assets) > limit {
		assets = assets[:limit]
	}

	records := make([]domain.AssetExportRecord, len(assets))
	for i, asset := range assets {
		records[i] = domain.AssetExportRecord{
			Asset:          asset,
			MakeName:       m.lookupName(domain.LookupMake, asset.MakeID),
			CategoryName:   m.lookupName(domain.LookupCategory, asset.CategoryID),
			SiteName:       m.lookupName(domain.LookupSite, asset.SiteID),
			LocationName:   m.lookupName(domain.LookupLocation, asset.LocationID),
			DepartmentName: m.lookupName(domain.LookupDepartment, asset.DepartmentID),
			VendorName:     m.lookupName(domain.LookupVendor, asset.VendorID),
		}
	}
	return records, total, nil
}

func (m *memoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.assets)), nil
}

func (m *memoryStore) lookupName(kind domain.LookupKind, id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	for _, entity := range m.lookups[kind] {
		if entity.ID == *id {
			name := entity.Name
			return &name
		}
	}
	return nil
}

func (m *memoryStore) ListAll(ctx context.Context, kind domain.LookupKind) ([]domain.LookupEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LookupEntity{}, m.lookups[kind]...), nil
}

func (m *memoryStore) Insert(ctx context.Context, kind domain.LookupKind, entity domain.LookupEntity) (domain.LookupEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[kind] = append(m.lookups[kind], entity)
	return entity, nil
}

func (m *memoryStore) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memoryStore) List(ctx context.Context, fileName string, limit, offset int) ([]domain.ImportLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ImportLogEntry
	for _, entry := range m.logs {
		if fileName == "" || entry.FileName == fileName {
			out = append(out, entry)
		}
	}
	return out, nil
}

// newTestServer wires the import and export handlers the same way the
// server binary does, backed by a shared in-memory store.
func newTestServer(t *testing.T) (*httptest.Server, *memoryStore) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := newMemoryStore()
	importService := importer.NewService(store, store, store, importer.WithLogger(log))
	exportService := export.NewService(store, export.WithLogger(log))

	mux := http.NewServeMux()
	importHandler := importer.NewHTTPHandler(importService, importer.Options{})
	mux.Handle("/api/imports", importHandler)
	mux.Handle("/api/imports/", importHandler)
	mux.Handle("/api/exports/", export.NewHTTPHandler(exportService))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

// uploadFile POSTs a multipart upload the way the web client does.
func uploadFile(t *testing.T, url, fileName string, payload []byte, form map[string]string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range form {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(url, writer.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		t.Fatalf("parse response: %v\nRaw: %s", err, string(body))
	}
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return body
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body := readBody(t, resp)
		t.Fatalf("status = %d, want %d\nBody: %s", resp.StatusCode, want, strings.TrimSpace(string(body)))
	}
}
