package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetStatus is the closed status vocabulary for assets.
type AssetStatus string

const (
	StatusAvailable   AssetStatus = "available"
	StatusInUse       AssetStatus = "in_use"
	StatusMaintenance AssetStatus = "maintenance"
	StatusDisposed    AssetStatus = "disposed"
	StatusRetired     AssetStatus = "retired"
	StatusLost        AssetStatus = "lost"
)

// AllStatuses lists every valid asset status.
func AllStatuses() []AssetStatus {
	return []AssetStatus{
		StatusAvailable,
		StatusInUse,
		StatusMaintenance,
		StatusDisposed,
		StatusRetired,
		StatusLost,
	}
}

// IsValid reports whether s is part of the closed vocabulary.
func (s AssetStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance, StatusDisposed, StatusRetired, StatusLost:
		return true
	}
	return false
}

// Asset is a tracked hardware or software asset. AssetTag is the only
// required identity field; two records with the same tag are the same
// logical asset. All other fields are optional and nullable.
type Asset struct {
	ID             uuid.UUID        `json:"id"`
	AssetTag       string           `json:"asset_tag"`
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Model          *string          `json:"model,omitempty"`
	SerialNumber   *string          `json:"serial_number,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	PurchasePrice  *decimal.Decimal `json:"purchase_price,omitempty"`
	PurchaseDate   *time.Time       `json:"purchase_date,omitempty"`
	WarrantyExpiry *time.Time       `json:"warranty_expiry,omitempty"`
	Status         AssetStatus      `json:"status"`
	MakeID         *uuid.UUID       `json:"make_id,omitempty"`
	CategoryID     *uuid.UUID       `json:"category_id,omitempty"`
	SiteID         *uuid.UUID       `json:"site_id,omitempty"`
	LocationID     *uuid.UUID       `json:"location_id,omitempty"`
	DepartmentID   *uuid.UUID       `json:"department_id,omitempty"`
	VendorID       *uuid.UUID       `json:"vendor_id,omitempty"`
	AssignedTo     *string          `json:"assigned_to,omitempty"`
	CheckoutDate   *time.Time       `json:"checkout_date,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewAsset creates an asset with a fresh id and timestamps.
func NewAsset(tag string) Asset {
	now := time.Now()
	return Asset{
		ID:        uuid.New(),
		AssetTag:  tag,
		Status:    StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AssetPatch carries a partial update keyed by asset tag. Nil fields are
// left untouched; the import pipeline never clears a stored value.
type AssetPatch struct {
	Name           *string
	Description    *string
	Model          *string
	SerialNumber   *string
	Notes          *string
	PurchasePrice  *decimal.Decimal
	PurchaseDate   *time.Time
	WarrantyExpiry *time.Time
	Status         *AssetStatus
	MakeID         *uuid.UUID
	CategoryID     *uuid.UUID
	SiteID         *uuid.UUID
	LocationID     *uuid.UUID
	DepartmentID   *uuid.UUID
	VendorID       *uuid.UUID
}

// IsEmpty reports whether the patch carries no changes.
func (p AssetPatch) IsEmpty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Model == nil &&
		p.SerialNumber == nil &&
		p.Notes == nil &&
		p.PurchasePrice == nil &&
		p.PurchaseDate == nil &&
		p.WarrantyExpiry == nil &&
		p.Status == nil &&
		p.MakeID == nil &&
		p.CategoryID == nil &&
		p.SiteID == nil &&
		p.LocationID == nil &&
		p.DepartmentID == nil &&
		p.VendorID == nil
}

// AssetExportRecord is an asset row with reference ids resolved to display
// names, ready for projection into a flat export row.
type AssetExportRecord struct {
	Asset
	MakeName       *string `json:"make,omitempty"`
	CategoryName   *string `json:"category,omitempty"`
	SiteName       *string `json:"site,omitempty"`
	LocationName   *string `json:"location,omitempty"`
	DepartmentName *string `json:"department,omitempty"`
	VendorName     *string `json:"vendor,omitempty"`
}
