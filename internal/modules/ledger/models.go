// Package ledger implements the unified asset ledger: one table of standardized
// balances from every venue, partitioned by exchange and replaced one partition
// at a time.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Header is the fixed column schema of the ledger
var Header = []string{"Exchange", "Currency", "Amount", "Type", "Status", "Meta", "Updated"}

// EntryType classifies a ledger row
type EntryType string

const (
	TypeSpot       EntryType = "Spot"
	TypeEarn       EntryType = "Earn"
	TypeLoan       EntryType = "Loan"
	TypeFunding    EntryType = "Funding"
	TypePositions  EntryType = "Positions"
	TypeStructured EntryType = "Structured"
)

// Status describes the state of a ledger balance
type Status string

const (
	StatusAvailable  Status = "Available"
	StatusFrozen     Status = "Frozen"
	StatusStaked     Status = "Staked"
	StatusDebt       Status = "Debt"
	StatusCollateral Status = "Collateral"
	StatusPosition   Status = "Position"
	StatusActive     Status = "Active"
)

// typeRank orders types for the "type desc" write ordering. Debt-bearing rows
// surface first, plain spot balances last.
var typeRank = map[EntryType]int{
	TypeLoan:       6,
	TypePositions:  5,
	TypeStructured: 4,
	TypeFunding:    3,
	TypeEarn:       2,
	TypeSpot:       1,
}

// Entry is one standardized balance row
type Entry struct {
	Exchange string          `json:"exchange"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Type     EntryType       `json:"type"`
	Status   Status          `json:"status"`
	Meta     string          `json:"meta"`
	Updated  time.Time       `json:"updated"`
}

// Normalize fills the default type and status
func (e Entry) Normalize() Entry {
	if e.Type == "" {
		e.Type = TypeSpot
	}
	if e.Status == "" {
		e.Status = StatusAvailable
	}
	return e
}
