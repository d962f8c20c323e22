package customers

import "time"

// Customer is identified by (company_id, number) and snapshotted from the
// invoice request on every sale.
type Customer struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Number    string    `json:"number"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Pincode   *string   `json:"pincode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertInput carries the identity and latest snapshot fields.
type UpsertInput struct {
	CompanyID int64
	Number    string
	Name      string
	Email     *string
	Address   *string
	Pincode   *string
}
