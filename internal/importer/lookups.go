package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assetdesk/assetdesk/internal/domain"
	"github.com/assetdesk/assetdesk/internal/repository"
)

// lookupResolver resolves human-readable reference names to ids,
// auto-creating missing entries. One resolver is built per import run so
// the name cache never leaks across runs; the snapshot of each reference
// table is loaded exactly once.
type lookupResolver struct {
	repo repository.LookupRepository
	log  *logrus.Entry

	mu      sync.Mutex
	entries map[domain.LookupKind]map[string]domain.LookupEntity
}

// newLookupResolver loads a snapshot of every reference table. A load
// failure is fatal: without the snapshot no row can be resolved.
func newLookupResolver(ctx context.Context, repo repository.LookupRepository, log *logrus.Entry) (*lookupResolver, error) {
	resolver := &lookupResolver{
		repo:    repo,
		log:     log,
		entries: make(map[domain.LookupKind]map[string]domain.LookupEntity),
	}
	for _, kind := range domain.AllLookupKinds() {
		all, err := repo.ListAll(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s lookup table: %w", kind, err)
		}
		byName := make(map[string]domain.LookupEntity, len(all))
		for _, entity := range all {
			byName[lookupKey(entity.Name)] = entity
		}
		resolver.entries[kind] = byName
	}
	return resolver, nil
}

func lookupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve matches name case-insensitively against the cached snapshot,
// creating a new reference entity on a miss. An empty name yields nil (the
// field stays unset); a create failure degrades to nil rather than failing
// the row.
func (r *lookupResolver) Resolve(ctx context.Context, kind domain.LookupKind, name string) *uuid.UUID {
	return r.resolve(ctx, kind, name, nil)
}

// ResolveLocation resolves a location name, attaching the given site to a
// newly created location. An existing location keeps its stored site even
// when the row names a different one: the match wins over row data.
func (r *lookupResolver) ResolveLocation(ctx context.Context, name string, siteID *uuid.UUID) *uuid.UUID {
	return r.resolve(ctx, domain.LookupLocation, name, siteID)
}

func (r *lookupResolver) resolve(ctx context.Context, kind domain.LookupKind, name string, siteID *uuid.UUID) *uuid.UUID {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil
	}

	// Find-or-create must be atomic per name so concurrent rows cannot
	// create duplicate entities for the same spelling.
	r.mu.Lock()
	defer r.mu.Unlock()

	if entity, ok := r.entries[kind][lookupKey(trimmed)]; ok {
		id := entity.ID
		return &id
	}

	candidate := domain.NewLookupEntity(trimmed, nil)
	if kind == domain.LookupLocation {
		candidate.SiteID = siteID
	}

	created, err := r.repo.Insert(ctx, kind, candidate)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"kind": kind,
			"name": trimmed,
		}).Warn("lookup auto-create failed, leaving field unset")
		return nil
	}

	r.entries[kind][lookupKey(created.Name)] = created
	id := created.ID
	return &id
}
