package models

import (
	"time"
)

// Base model fields shared by all models
type Base struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentFamily identifies the fiscal document family
type DocumentFamily string

const (
	// FamilyCTE is the electronic transport waybill (CT-e)
	FamilyCTE DocumentFamily = "cte"
	// FamilyMDFE is the electronic trip manifest (MDF-e)
	FamilyMDFE DocumentFamily = "mdfe"
)

// FreightModality classifies who pays the freight
type FreightModality string

const (
	// ModalityCIF means the sender pays the freight
	ModalityCIF FreightModality = "CIF"
	// ModalityFOB means the recipient pays the freight
	ModalityFOB FreightModality = "FOB"
)

// Document is the root record for one fiscal document. The access key is
// the 44-digit national identifier and is immutable once set. The raw XML
// is always preserved, even when normalization fails.
type Document struct {
	Base
	Family        DocumentFamily `json:"family" gorm:"index;not null"`
	AccessKey     string         `json:"access_key" gorm:"size:44;uniqueIndex;not null"`
	SchemaVersion string         `json:"schema_version"`
	RawXML        []byte         `json:"-"`
	UploadedAt    time.Time      `json:"uploaded_at"`
	Processed     bool           `json:"processed" gorm:"index"`
	Canceled      bool           `json:"canceled"`

	// CT-e derived field
	Modality FreightModality `json:"modality,omitempty"`

	// MDF-e closure state
	Closed   bool       `json:"closed"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// String returns a string representation of DocumentFamily
func (f DocumentFamily) String() string {
	return string(f)
}
