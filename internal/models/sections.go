package models

import (
	"time"
)

// PartyRole identifies which involved party a Party record describes
type PartyRole string

const (
	// RoleIssuer is the document issuer (emit)
	RoleIssuer PartyRole = "issuer"
	// RoleSender is the cargo sender (rem)
	RoleSender PartyRole = "sender"
	// RoleDispatcher is the dispatching party (exped)
	RoleDispatcher PartyRole = "dispatcher"
	// RoleReceiver is the receiving party (receb)
	RoleReceiver PartyRole = "receiver"
	// RoleRecipient is the final recipient (dest)
	RoleRecipient PartyRole = "recipient"
)

// Identification holds the ide block of a document. Singleton per document.
type Identification struct {
	Base
	DocumentID      uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document        *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Number          int       `json:"number"`
	Series          int       `json:"series"`
	Model           int       `json:"model"`
	EmittedAt       *time.Time `json:"emitted_at"`
	OperationNature string    `json:"operation_nature"`
	CFOP            string    `json:"cfop"`
	Environment     int       `json:"environment"`
	EmissionType    int       `json:"emission_type"`
	Modal           string    `json:"modal"`
	ServiceType     int       `json:"service_type"`
	OriginCityCode  string    `json:"origin_city_code"`
	OriginCityName  string    `json:"origin_city_name"`
	OriginUF        string    `json:"origin_uf"`
	DestCityCode    string    `json:"dest_city_code"`
	DestCityName    string    `json:"dest_city_name"`
	DestUF          string    `json:"dest_uf"`
	PayerRole       string    `json:"payer_role"`
}

// Party holds one involved party with its address. Singleton per
// (document, role) pair; every role is a distinct owned child even when
// the address shape repeats.
type Party struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"index:idx_party_doc_role,unique;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Role       PartyRole `json:"role" gorm:"index:idx_party_doc_role,unique;not null"`
	CNPJ       string    `json:"cnpj"`
	CPF        string    `json:"cpf"`
	IE         string    `json:"ie"`
	Name       string    `json:"name"`
	TradeName  string    `json:"trade_name"`
	Street     string    `json:"street"`
	Number     string    `json:"number"`
	Complement string    `json:"complement"`
	District   string    `json:"district"`
	CityCode   string    `json:"city_code"`
	CityName   string    `json:"city_name"`
	UF         string    `json:"uf"`
	ZipCode    string    `json:"zip_code"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
}

// Freight holds the service values (vPrest). Singleton per document.
type Freight struct {
	Base
	DocumentID      uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document        *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	TotalValue      float64   `json:"total_value"`
	ReceivableValue float64   `json:"receivable_value"`
}

// FreightComponent is one named value component of the freight price
type FreightComponent struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"index;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
}

// Tax holds the ICMS block of a document. Singleton per document; the
// Variant records which tax-calculation sub-group was present in the XML.
type Tax struct {
	Base
	DocumentID    uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document      *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Variant       string    `json:"variant"`
	CST           string    `json:"cst"`
	BaseValue     float64   `json:"base_value"`
	Rate          float64   `json:"rate"`
	Value         float64   `json:"value"`
	TotalTributes float64   `json:"total_tributes"`
}

// Cargo holds the transported cargo description. Singleton per document.
type Cargo struct {
	Base
	DocumentID  uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document    *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Value       float64   `json:"value"`
	Product     string    `json:"product"`
	OtherTraits string    `json:"other_traits"`
}

// CargoQuantity is one quantity-breakdown entry of the cargo
type CargoQuantity struct {
	Base
	DocumentID  uint      `json:"document_id" gorm:"index;not null"`
	Document    *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	UnitCode    string    `json:"unit_code"`
	MeasureType string    `json:"measure_type"`
	Quantity    float64   `json:"quantity"`
}

// TransportedDocument references one document carried by this one: an NF-e
// or paper invoice on a CT-e, a CT-e or NF-e per discharge city on an MDF-e.
type TransportedDocument struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"index;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Kind       string    `json:"kind"`
	AccessKey  string    `json:"access_key"`
	Number     string    `json:"number"`
	CityCode   string    `json:"city_code"`
	CityName   string    `json:"city_name"`
}

// Insurance is one insurance entry (seg)
type Insurance struct {
	Base
	DocumentID        uint      `json:"document_id" gorm:"index;not null"`
	Document          *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Responsible       string    `json:"responsible"`
	Insurer           string    `json:"insurer"`
	PolicyNumber      string    `json:"policy_number"`
	EndorsementNumber string    `json:"endorsement_number"`
}

// RoadModal holds the road-modal block (rodo). Singleton per document.
type RoadModal struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	RNTRC      string    `json:"rntrc"`
}

// Vehicle is one vehicle of the road-modal block
type Vehicle struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"index;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Plate      string    `json:"plate"`
	Renavam    string    `json:"renavam"`
	TareKG     int       `json:"tare_kg"`
	CapacityKG int       `json:"capacity_kg"`
	UF         string    `json:"uf"`
	Traction   bool      `json:"traction"`
}

// Driver is one driver of the road-modal block
type Driver struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"index;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Name       string    `json:"name"`
	CPF        string    `json:"cpf"`
}

// AuthorizedViewer is one authorized XML downloader (autXML)
type AuthorizedViewer struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"index;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	TaxID      string    `json:"tax_id"`
}

// TechResponsible holds the technical-responsible block (infRespTec).
// Singleton per document.
type TechResponsible struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CNPJ       string    `json:"cnpj"`
	Contact    string    `json:"contact"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
}

// Protocol holds the authority's authorization protocol. Singleton per
// document; not required for the document to count as processed.
type Protocol struct {
	Base
	DocumentID   uint       `json:"document_id" gorm:"uniqueIndex;not null"`
	Document     *Document  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	AccessKey    string     `json:"access_key"`
	Number       string     `json:"number"`
	StatusCode   int        `json:"status_code"`
	StatusReason string     `json:"status_reason"`
	ReceivedAt   *time.Time `json:"received_at"`
	DigestValue  string     `json:"digest_value"`
}

// Supplement holds the supplementary QR payload. Singleton per document.
type Supplement struct {
	Base
	DocumentID uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document   *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	QRCode     string    `json:"qr_code"`
}

// Totals holds the MDF-e tot block. Singleton per document.
type Totals struct {
	Base
	DocumentID   uint      `json:"document_id" gorm:"uniqueIndex;not null"`
	Document     *Document `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	WaybillCount int       `json:"waybill_count"`
	InvoiceCount int       `json:"invoice_count"`
	CargoValue   float64   `json:"cargo_value"`
	UnitCode     string    `json:"unit_code"`
	CargoWeight  float64   `json:"cargo_weight"`
}
