package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferRecord is a partner's bid on a request.
type OfferRecord struct {
	ID          string          `db:"id" json:"id"`
	RequestID   string          `db:"request_id" json:"requestId"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	OfferDate   time.Time       `db:"offer_date" json:"offerDate"`
}

type OfferInput struct {
	Description string          `json:"description" form:"description" validate:"required,max=2000"`
	Price       decimal.Decimal `json:"price" form:"price"`
	OfferDate   *time.Time      `json:"offerDate" form:"offer_date"`
}

// OfferPatch only writes the fields that are set.
type OfferPatch struct {
	Description *string          `json:"description" form:"description" validate:"omitempty,min=1,max=2000"`
	Price       *decimal.Decimal `json:"price" form:"price"`
	OfferDate   *time.Time       `json:"offerDate" form:"offer_date"`
}

func (p *OfferPatch) Empty() bool {
	return p.Description == nil && p.Price == nil && p.OfferDate == nil
}

// Columns maps the supplied fields to their column names.
func (p *OfferPatch) Columns() map[string]any {
	out := make(map[string]any)
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Price != nil {
		out["price"] = *p.Price
	}
	if p.OfferDate != nil {
		out["offer_date"] = *p.OfferDate
	}
	return out
}
