// Package domain holds the types shared by the decision core: positions, derived
// groups, the per-run portfolio context and the alerts produced from it.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one balance sheet row. A negative Value is a liability.
type Position struct {
	Ticker  string          `json:"ticker"`
	Amount  decimal.Decimal `json:"amount"`
	Value   decimal.Decimal `json:"value"` // TWD equivalent, signed
	Purpose string          `json:"purpose,omitempty"`
}

// PledgeGroup is the collateral/debt pair for one normalized purpose label
type PledgeGroup struct {
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	CollateralValue decimal.Decimal `json:"collateralValue"`
	LoanAmount      decimal.Decimal `json:"loanAmount"`
	Ratio           float64         `json:"ratio"`
	Safe            float64         `json:"safe"`
	Alert           float64         `json:"alert"`
	Critical        float64         `json:"critical"`
}

// TargetSource records which precedence tier produced an asset group target
type TargetSource string

const (
	TargetFromOverride TargetSource = "override"
	TargetFromRegime   TargetSource = "regime"
	TargetFromDefault  TargetSource = "default"
)

// MiscGroupID identifies the synthetic complement group
const MiscGroupID = "MISC"

// AssetGroup is a declared allocation layer with its per-run target and value
type AssetGroup struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Role          string          `json:"role"`
	Tickers       []string        `json:"tickers"`
	DefaultTarget float64         `json:"defaultTarget"`
	Target        float64         `json:"target"`
	TargetSource  TargetSource    `json:"targetSource"`
	Value         decimal.Decimal `json:"value"`
	Weight        float64         `json:"weight"`
	Drift         float64         `json:"drift"`
	Rebalanceable bool            `json:"rebalanceable"`
}

// MarketSnapshot holds point-in-time market indicators. Absent values stay zero.
type MarketSnapshot struct {
	BTCPrice             float64 `json:"btcPrice"`
	BaseATH              float64 `json:"baseAth"`
	MartingaleSpent      float64 `json:"martingaleSpent"`
	MartingaleBudget     float64 `json:"martingaleBudget"`
	RegimeMultiple       float64 `json:"regimeMultiple"`
	HasRegimeMultiple    bool    `json:"hasRegimeMultiple"`
	RegimeMultipleSource string  `json:"regimeMultipleSource,omitempty"`
	FXRate               float64 `json:"fxRate"`
	MonthlySurplus       float64 `json:"monthlySurplus"`
}

// Indicators are the secondary metrics derived from totals and groups
type Indicators struct {
	LTV                     float64 `json:"ltv"`
	CryptoLTV               float64 `json:"cryptoLtv"`
	SurvivalRunway          float64 `json:"survivalRunway"`
	L1SpotRatio             float64 `json:"l1SpotRatio"`
	TotalBTCRatio           float64 `json:"totalBtcRatio"`
	MaintenanceRatio        float64 `json:"maintenanceRatio"`
	BinanceMaintenanceRatio float64 `json:"binanceMaintenanceRatio"`
	LiquidAssets            float64 `json:"liquidAssets"`
	MonthlyDebtCost         float64 `json:"monthlyDebtCost"`
	TreasuryReserve         float64 `json:"treasuryReserve"`
}

// RebalanceTarget is a textual rebalancing instruction, never an order
type RebalanceTarget struct {
	Ticker   string  `json:"ticker"`
	Priority string  `json:"priority"`
	Action   string  `json:"action"`
	Drift    float64 `json:"drift,omitempty"`
}

// PortfolioContext is the immutable per-run snapshot consumed by the rule engine
type PortfolioContext struct {
	RunID             string                     `json:"runId"`
	BuiltAt           time.Time                  `json:"builtAt"`
	Positions         []Position                 `json:"-"`
	PositionsByTicker map[string]decimal.Decimal `json:"positionsByTicker"`
	PledgeGroups      []PledgeGroup              `json:"pledgeGroups"`
	AssetGroups       []AssetGroup               `json:"assetGroups"`
	Market            MarketSnapshot             `json:"market"`
	Indicators        Indicators                 `json:"indicators"`
	TotalGrossAssets  decimal.Decimal            `json:"totalGrossAssets"`
	NetEntityValue    decimal.Decimal            `json:"netEntityValue"`
	TotalLiabilities  decimal.Decimal            `json:"totalLiabilities"`
	RebalanceTargets  []RebalanceTarget          `json:"rebalanceTargets"`
}

// AssetGroup returns the group with the given id, or nil
func (c *PortfolioContext) AssetGroup(id string) *AssetGroup {
	for i := range c.AssetGroups {
		if c.AssetGroups[i].ID == id {
			return &c.AssetGroups[i]
		}
	}
	return nil
}

// PledgeGroup returns the pledge group with the given normalized name, or nil
func (c *PortfolioContext) PledgeGroup(name string) *PledgeGroup {
	for i := range c.PledgeGroups {
		if c.PledgeGroups[i].Name == name {
			return &c.PledgeGroups[i]
		}
	}
	return nil
}

// Severity classifies alerts and notifications
type Severity string

const (
	SeverityInfo      Severity = "INFO"
	SeverityWarning   Severity = "WARNING"
	SeverityError     Severity = "ERROR"
	SeveritySuccess   Severity = "SUCCESS"
	SeverityStrategic Severity = "STRATEGIC"
)

// Alert is produced by a rule action and delivered by a notification channel
type Alert struct {
	Rule     string   `json:"rule"`
	Level    string   `json:"level"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
}
