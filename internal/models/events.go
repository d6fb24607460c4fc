package models

import (
	"time"
)

// Lifecycle event type codes as assigned by the tax authority
const (
	// EventCodeCancel cancels an authorized document
	EventCodeCancel = "110111"
	// EventCodeClosure closes an MDF-e trip
	EventCodeClosure = "110112"
	// EventCodeClosureCancel reverts a previously registered closure
	EventCodeClosureCancel = "110113"
)

// Event status codes returned by the authority on registration
const (
	// EventStatusRegistered means the event was registered and bound
	EventStatusRegistered = 135
	// EventStatusRegisteredUnbound means registered but not bound yet
	EventStatusRegisteredUnbound = 136
)

// DocumentEvent is the lifecycle-event record of a document. Singleton per
// document, upserted by merging the outbound envelope with its (possibly
// later-arriving) confirmation.
type DocumentEvent struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	// Outbound envelope fields
	EventType        string     `json:"event_type"`
	Sequence         int        `json:"sequence"`
	OrganCode        string     `json:"organ_code"`
	Justification    string     `json:"justification"`
	OriginalProtocol string     `json:"original_protocol"`
	EventAt          *time.Time `json:"event_at"`

	// Confirmation fields
	StatusCode       int        `json:"status_code"`
	StatusReason     string     `json:"status_reason"`
	ResponseProtocol string     `json:"response_protocol"`
	RegisteredAt     *time.Time `json:"registered_at"`
	Confirmed        bool       `json:"confirmed"`
}

// Registered reports whether the authority accepted the event
func (e *DocumentEvent) Registered() bool {
	return e.Confirmed &&
		(e.StatusCode == EventStatusRegistered || e.StatusCode == EventStatusRegisteredUnbound)
}

// EventNameFromCode maps a tpEvento code to the short name used in file
// classification tags. Unknown codes fall back to the code itself.
func EventNameFromCode(code string) string {
	switch code {
	case EventCodeCancel:
		return "cancel"
	case EventCodeClosure:
		return "closure"
	case EventCodeClosureCancel:
		return "closure_cancel"
	default:
		return code
	}
}
