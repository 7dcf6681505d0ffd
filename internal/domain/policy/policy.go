package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy represents an insurance policy held by a client of an agency (tenant).
// Corresponds to the 'policies' table.
type Policy struct {
	ID             string
	TenantID       string
	ClientID       string
	PolicyNumber   string
	Carrier        string
	Type           string // e.g. auto, home, life, commercial
	Status         Status
	StartDate      *time.Time
	EndDate        *time.Time // Expiry date; drives renewal reminders
	Premium        decimal.Decimal
	CoverageAmount decimal.NullDecimal
	Deductible     decimal.NullDecimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasEndDate reports whether the policy expires at all.
func (p *Policy) HasEndDate() bool { return p.EndDate != nil }

// Schedulable reports whether the policy should carry renewal reminders.
func (p *Policy) Schedulable() bool {
	return p.EndDate != nil && !p.Status.SuppressesRenewals()
}
