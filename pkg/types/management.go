package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ManagementRecord holds the operator's working data for a request. There is
// at most one per request.
type ManagementRecord struct {
	RequestID        string          `db:"request_id" json:"requestId"`
	Notes            string          `db:"notes" json:"notes"`
	RangeMin         decimal.Decimal `db:"range_min" json:"rangeMin"`
	RangeMax         decimal.Decimal `db:"range_max" json:"rangeMax"`
	RegistrationCost decimal.Decimal `db:"registration_cost" json:"registrationCost"`
	TransportCost    decimal.Decimal `db:"transport_cost" json:"transportCost"`
	PurchasePrice    decimal.Decimal `db:"purchase_price" json:"purchasePrice"`
	SalePrice        decimal.Decimal `db:"sale_price" json:"salePrice"`
	CloseReason      *CloseReason    `db:"close_reason" json:"closeReason,omitempty"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// DefaultManagementRecord is what callers show when no row exists yet.
func DefaultManagementRecord(requestID string) *ManagementRecord {
	return &ManagementRecord{
		RequestID:        requestID,
		RangeMin:         decimal.Zero,
		RangeMax:         decimal.Zero,
		RegistrationCost: decimal.Zero,
		TransportCost:    decimal.Zero,
		PurchasePrice:    decimal.Zero,
		SalePrice:        decimal.Zero,
	}
}

// ManagementPatch carries the fields an operator edited. Nil fields keep the
// current value when overlaid onto a full record.
type ManagementPatch struct {
	Notes            *string          `json:"notes" form:"notes"`
	RangeMin         *decimal.Decimal `json:"rangeMin" form:"range_min"`
	RangeMax         *decimal.Decimal `json:"rangeMax" form:"range_max"`
	RegistrationCost *decimal.Decimal `json:"registrationCost" form:"registration_cost"`
	TransportCost    *decimal.Decimal `json:"transportCost" form:"transport_cost"`
	PurchasePrice    *decimal.Decimal `json:"purchasePrice" form:"purchase_price"`
	SalePrice        *decimal.Decimal `json:"salePrice" form:"sale_price"`
	CloseReason      *CloseReason     `json:"closeReason" form:"close_reason"`
}

func (p *ManagementPatch) Empty() bool {
	return p.Notes == nil && p.RangeMin == nil && p.RangeMax == nil &&
		p.RegistrationCost == nil && p.TransportCost == nil &&
		p.PurchasePrice == nil && p.SalePrice == nil && p.CloseReason == nil
}

// Apply copies every supplied field onto rec.
func (p *ManagementPatch) Apply(rec *ManagementRecord) {
	if p.Notes != nil {
		rec.Notes = *p.Notes
	}
	if p.RangeMin != nil {
		rec.RangeMin = *p.RangeMin
	}
	if p.RangeMax != nil {
		rec.RangeMax = *p.RangeMax
	}
	if p.RegistrationCost != nil {
		rec.RegistrationCost = *p.RegistrationCost
	}
	if p.TransportCost != nil {
		rec.TransportCost = *p.TransportCost
	}
	if p.PurchasePrice != nil {
		rec.PurchasePrice = *p.PurchasePrice
	}
	if p.SalePrice != nil {
		rec.SalePrice = *p.SalePrice
	}
	if p.CloseReason != nil {
		rec.CloseReason = p.CloseReason
	}
}
