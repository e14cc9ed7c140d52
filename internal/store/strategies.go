package store

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// StrategyDefinition is the store-level view of a configured strategy
// (spec §3 §4.5), joining its active version's parameter set.
type StrategyDefinition struct {
	StrategyID      string
	Name            string
	Type            string
	Active          bool
	ActiveVersionID string
	Params          map[string]string
	Symbols         []StrategySymbolBinding
}

// StrategySymbolBinding ties a strategy to one (symbol, account) it trades.
type StrategySymbolBinding struct {
	Symbol    string
	AccountID string
}

// StrategyRepository persists strategies, their versioned parameter sets,
// and their symbol/account bindings (spec §4.5).
type StrategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository(db *gorm.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

func encodeParams(params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func decodeParams(csv string) map[string]string {
	out := make(map[string]string)
	if csv == "" {
		return out
	}
	for _, part := range strings.Split(csv, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

// CreateVersion writes a new immutable parameter-set version for a strategy
// (spec §4.5: "a version is never mutated in place").
func (r *StrategyRepository) CreateVersion(strategyID, versionID string, params map[string]string, createdAt time.Time) error {
	row := StrategyVersionRow{
		VersionID:  versionID,
		StrategyID: strategyID,
		ParamsCSV:  encodeParams(params),
		CreatedAt:  createdAt,
	}
	return r.db.Create(&row).Error
}

// Upsert writes the strategy definition row and activates versionID.
func (r *StrategyRepository) Upsert(strategyID, name, strategyType, activeVersionID string, active bool, now time.Time) error {
	row := StrategyRow{
		StrategyID:      strategyID,
		Name:            name,
		Type:            strategyType,
		Active:          active,
		ActiveVersionID: activeVersionID,
		UpdatedAt:       now,
	}
	var existing StrategyRow
	err := r.db.Where("strategy_id = ?", strategyID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row.CreatedAt = now
		return r.db.Create(&row).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&StrategyRow{}).Where("strategy_id = ?", strategyID).Updates(map[string]interface{}{
		"name":              name,
		"type":              strategyType,
		"active":            active,
		"active_version_id": activeVersionID,
		"updated_at":        now,
	}).Error
}

func (r *StrategyRepository) BindSymbol(strategyID, symbol, accountID string) error {
	var count int64
	r.db.Model(&StrategySymbolRow{}).
		Where("strategy_id = ? AND symbol = ? AND account_id = ?", strategyID, symbol, accountID).
		Count(&count)
	if count > 0 {
		return nil
	}
	row := StrategySymbolRow{StrategyID: strategyID, Symbol: symbol, AccountID: accountID}
	return r.db.Create(&row).Error
}

// ListActive returns every active strategy with its current parameter set
// and symbol bindings, for the scheduler's evaluation loop (spec §4.5).
func (r *StrategyRepository) ListActive() ([]StrategyDefinition, error) {
	var rows []StrategyRow
	if err := r.db.Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}

	defs := make([]StrategyDefinition, 0, len(rows))
	for _, row := range rows {
		var versionRow StrategyVersionRow
		params := map[string]string{}
		if row.ActiveVersionID != "" {
			if err := r.db.Where("version_id = ?", row.ActiveVersionID).First(&versionRow).Error; err == nil {
				params = decodeParams(versionRow.ParamsCSV)
			}
		}

		var symbolRows []StrategySymbolRow
		if err := r.db.Where("strategy_id = ?", row.StrategyID).Find(&symbolRows).Error; err != nil {
			return nil, err
		}
		symbols := make([]StrategySymbolBinding, len(symbolRows))
		for i, sr := range symbolRows {
			symbols[i] = StrategySymbolBinding{Symbol: sr.Symbol, AccountID: sr.AccountID}
		}

		defs = append(defs, StrategyDefinition{
			StrategyID:      row.StrategyID,
			Name:            row.Name,
			Type:            row.Type,
			Active:          row.Active,
			ActiveVersionID: row.ActiveVersionID,
			Params:          params,
			Symbols:         symbols,
		})
	}
	return defs, nil
}
