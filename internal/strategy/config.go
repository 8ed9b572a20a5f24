// Package strategy loads the treasury strategy parameters: asset groups and their
// regime bands, pledge categories, the martingale ladder and the rule thresholds.
package strategy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Group roles. Reserve bands must not rise with the regime multiple; growth and
// liquidity bands must not fall.
const (
	RoleReserve   = "reserve"
	RoleGrowth    = "growth"
	RoleLiquidity = "liquidity"
)

// Band maps regime multiples below Below onto Target. The last band has no
// upper bound.
type Band struct {
	Below  *float64 `yaml:"below"`
	Target float64  `yaml:"target"`
}

// Rebalance holds the drift limits that produce rebalance targets
type Rebalance struct {
	Under         *float64 `yaml:"under"`
	UnderPriority string   `yaml:"under_priority"`
	UnderAction   string   `yaml:"under_action"`
	Over          *float64 `yaml:"over"`
	OverPriority  string   `yaml:"over_priority"`
	OverAction    string   `yaml:"over_action"`
}

// AssetGroup is the static identity of an allocation layer
type AssetGroup struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	Role          string    `yaml:"role"`
	Tickers       []string  `yaml:"tickers"`
	SpotTickers   []string  `yaml:"spot_tickers"`
	DefaultTarget float64   `yaml:"default_target"`
	RegimeBands   []Band    `yaml:"regime_bands"`
	Rebalance     Rebalance `yaml:"rebalance"`
}

// Thresholds are maintenance ratio tiers for a pledge category
type Thresholds struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Safe     float64  `yaml:"safe"`
	Alert    float64  `yaml:"alert"`
	Critical float64  `yaml:"critical"`
}

// Pledge configures pledge group categorisation
type Pledge struct {
	IgnoreLabels       []string     `yaml:"ignore_labels"`
	Default            Thresholds   `yaml:"default"`
	Categories         []Thresholds `yaml:"categories"`
	PrimaryStockGroup  string       `yaml:"primary_stock_group"`
	PrimaryCryptoGroup string       `yaml:"primary_crypto_group"`
}

// MartingaleLevel is one rung of the drawdown ladder
type MartingaleLevel struct {
	Drop       float64 `yaml:"drop"`
	Multiplier float64 `yaml:"multiplier"`
	Name       string  `yaml:"name"`
}

// Martingale configures drawdown-scaled accumulation
type Martingale struct {
	Enabled    bool              `yaml:"enabled"`
	BaseAmount float64           `yaml:"base_amount"`
	Levels     []MartingaleLevel `yaml:"levels"`
}

// Cashflow configures the monthly surplus rerouting rule
type Cashflow struct {
	SpotRatioFloor      float64 `yaml:"spot_ratio_floor"`
	ReserveRatioCeiling float64 `yaml:"reserve_ratio_ceiling"`
}

// Config is the whole strategy document
type Config struct {
	Version               string       `yaml:"version"`
	AssetGroups           []AssetGroup `yaml:"asset_groups"`
	NoiseAssets           []string     `yaml:"noise_assets"`
	NoiseFloorTWD         float64      `yaml:"noise_floor_twd"`
	LiquidTickers         []string     `yaml:"liquid_tickers"`
	Pledge                Pledge       `yaml:"pledge"`
	Martingale            Martingale   `yaml:"martingale"`
	InstitutionalFloorUSD float64      `yaml:"institutional_floor_usd"`
	ATHBreakoutMargin     float64      `yaml:"ath_breakout_margin"`
	LTVCeiling            float64      `yaml:"ltv_ceiling"`
	RunwayFloorMonths     float64      `yaml:"runway_floor_months"`
	Cashflow              Cashflow     `yaml:"cashflow"`
	BTCGoal               float64      `yaml:"btc_goal"`
	DefaultFXRate         float64      `yaml:"default_fx_rate"`
}

// Default returns the embedded strategy
func Default() *Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded strategy is invalid: %v", err))
	}
	return cfg
}

// Load reads a strategy file, falling back to the embedded default when path is empty
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a strategy document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse strategy: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks group identity, band ordering and band monotonicity
func (c *Config) Validate() error {
	if len(c.AssetGroups) == 0 {
		return errors.New("strategy: at least one asset group is required")
	}

	seen := make(map[string]bool)
	reserves := 0
	for _, g := range c.AssetGroups {
		if g.ID == "" {
			return errors.New("strategy: asset group id is required")
		}
		if seen[g.ID] {
			return fmt.Errorf("strategy: duplicate asset group %s", g.ID)
		}
		seen[g.ID] = true
		if g.Role == RoleReserve {
			reserves++
		}
		if err := validateBands(g); err != nil {
			return err
		}
	}
	if reserves != 1 {
		return fmt.Errorf("strategy: exactly one reserve group is required, found %d", reserves)
	}
	if c.Pledge.Default.Critical > c.Pledge.Default.Alert {
		return errors.New("strategy: default critical threshold exceeds alert threshold")
	}
	for _, cat := range c.Pledge.Categories {
		if cat.Critical > cat.Alert {
			return fmt.Errorf("strategy: %s critical threshold exceeds alert threshold", cat.Name)
		}
	}
	return nil
}

func validateBands(g AssetGroup) error {
	if len(g.RegimeBands) == 0 {
		return nil
	}

	last := len(g.RegimeBands) - 1
	for i, b := range g.RegimeBands {
		if i < last && b.Below == nil {
			return fmt.Errorf("strategy: %s band %d needs an upper bound", g.ID, i)
		}
		if i == last && b.Below != nil {
			return fmt.Errorf("strategy: %s last band must be unbounded", g.ID)
		}
		if i == 0 {
			continue
		}
		prev := g.RegimeBands[i-1]
		if b.Below != nil && *b.Below <= *prev.Below {
			return fmt.Errorf("strategy: %s bands must be strictly ascending", g.ID)
		}
		switch g.Role {
		case RoleReserve:
			if b.Target > prev.Target {
				return fmt.Errorf("strategy: reserve group %s target rises with the regime multiple", g.ID)
			}
		case RoleGrowth, RoleLiquidity:
			if b.Target < prev.Target {
				return fmt.Errorf("strategy: %s group %s target falls with the regime multiple", g.Role, g.ID)
			}
		}
	}
	return nil
}

// ReserveGroup returns the single reserve-role group
func (c *Config) ReserveGroup() AssetGroup {
	for _, g := range c.AssetGroups {
		if g.Role == RoleReserve {
			return g
		}
	}
	return AssetGroup{}
}

// Group returns the group with the given id
func (c *Config) Group(id string) (AssetGroup, bool) {
	for _, g := range c.AssetGroups {
		if g.ID == id {
			return g, true
		}
	}
	return AssetGroup{}, false
}

// IsNoise reports whether ticker is excluded from every allocation group
func (c *Config) IsNoise(ticker string) bool {
	return contains(c.NoiseAssets, ticker)
}

// IsLiquid reports whether ticker counts as a cash equivalent
func (c *Config) IsLiquid(ticker string) bool {
	return contains(c.LiquidTickers, ticker)
}

// Ignored reports whether a purpose label carries no pledge
func (p Pledge) Ignored(label string) bool {
	for _, l := range p.IgnoreLabels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// Category resolves the thresholds for a normalized pledge label by matching
// the configured label patterns, falling back to the default category.
func (p Pledge) Category(label string) Thresholds {
	lower := strings.ToLower(label)
	for _, cat := range p.Categories {
		for _, pattern := range cat.Patterns {
			if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
				return cat
			}
		}
	}
	return p.Default
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
