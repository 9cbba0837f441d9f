package types

import "time"

// Request is a used vehicle purchase request. Rows are written by the intake
// service; this module only reads them.
type Request struct {
	ID           string    `db:"id" json:"id"`
	Make         string    `db:"make" json:"make"`
	Model        string    `db:"model" json:"model"`
	Year         *int      `db:"year" json:"year,omitempty"`
	MileageKm    *int      `db:"mileage_km" json:"mileageKm,omitempty"`
	Condition    *string   `db:"condition" json:"condition,omitempty"`
	ContactName  *string   `db:"contact_name" json:"contactName,omitempty"`
	ContactEmail *string   `db:"contact_email" json:"contactEmail,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contactPhone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// RequestDetail is the composite returned by GET /request/:id.
type RequestDetail struct {
	Request       *Request          `json:"request"`
	CurrentStatus *StatusRecord     `json:"currentStatus"`
	StatusHistory []*StatusRecord   `json:"statusHistory"`
	Management    *ManagementRecord `json:"management"`
	Offers        []*OfferRecord    `json:"offers"`
}
