package services

import (
	"context"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
)

// Interfaces for ContextBuilder dependencies. The builder defines what it
// needs; repositories in internal/modules implement it.

// PositionSource provides the balance sheet rows
type PositionSource interface {
	GetAll(ctx context.Context) ([]domain.Position, error)
}

// IndicatorSource provides the raw market indicator rows
type IndicatorSource interface {
	Load(ctx context.Context) (indicators.Set, error)
}

// LedgerSource provides the merged unified ledger
type LedgerSource interface {
	All(ctx context.Context) ([]ledger.Entry, error)
}

// SettingsReader provides runtime settings
type SettingsReader interface {
	GetFloat(ctx context.Context, key string, def float64) float64
}

// RegimeFallback supplies the regime multiple when the indicator source has none
type RegimeFallback interface {
	MayerMultiple(ctx context.Context, ticker string) (float64, bool, error)
}
