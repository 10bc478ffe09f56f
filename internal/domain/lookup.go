package domain

import (
	"time"

	"github.com/google/uuid"
)

// LookupKind identifies one of the reference tables that import rows can
// point at by human-readable name.
type LookupKind string

const (
	LookupCategory   LookupKind = "category"
	LookupMake       LookupKind = "make"
	LookupSite       LookupKind = "site"
	LookupLocation   LookupKind = "location"
	LookupDepartment LookupKind = "department"
	LookupVendor     LookupKind = "vendor"
)

// AllLookupKinds lists every reference kind the import pipeline resolves.
func AllLookupKinds() []LookupKind {
	return []LookupKind{
		LookupCategory,
		LookupMake,
		LookupSite,
		LookupLocation,
		LookupDepartment,
		LookupVendor,
	}
}

// TableName maps a lookup kind to its backing table.
func (k LookupKind) TableName() string {
	switch k {
	case LookupCategory:
		return "categories"
	case LookupMake:
		return "makes"
	case LookupSite:
		return "sites"
	case LookupLocation:
		return "locations"
	case LookupDepartment:
		return "departments"
	case LookupVendor:
		return "vendors"
	}
	return ""
}

// LookupEntity is a reference table row. Only locations carry a site
// back-reference; SiteID is nil for every other kind.
type LookupEntity struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	SiteID    *uuid.UUID `json:"site_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewLookupEntity creates a reference entity with a fresh id.
func NewLookupEntity(name string, siteID *uuid.UUID) LookupEntity {
	return LookupEntity{
		ID:        uuid.New(),
		Name:      name,
		SiteID:    siteID,
		CreatedAt: time.Now(),
	}
}
