package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// RiskRuleRepository persists types.RiskRule (spec §3, §4.1 resolution
// order PER_SYMBOL > PER_ACCOUNT > GLOBAL).
type RiskRuleRepository struct {
	db *gorm.DB
}

func NewRiskRuleRepository(db *gorm.DB) *RiskRuleRepository {
	return &RiskRuleRepository{db: db}
}

func toRiskRuleRow(rule types.RiskRule) RiskRuleRow {
	return RiskRuleRow{
		RuleID:                        rule.RuleID,
		Scope:                         string(rule.Scope),
		AccountID:                     rule.AccountID,
		Symbol:                        rule.Symbol,
		MaxPositionValuePerSymbol:     rule.MaxPositionValuePerSymbol,
		MaxOpenOrders:                 rule.MaxOpenOrders,
		MaxOrdersPerMinute:            rule.MaxOrdersPerMinute,
		DailyLossLimit:                rule.DailyLossLimit,
		ConsecutiveOrderFailuresLimit: rule.ConsecutiveOrderFailuresLimit,
	}
}

func fromRiskRuleRow(row RiskRuleRow) types.RiskRule {
	return types.RiskRule{
		RuleID:                        row.RuleID,
		Scope:                         types.RiskRuleScope(row.Scope),
		AccountID:                     row.AccountID,
		Symbol:                        row.Symbol,
		MaxPositionValuePerSymbol:     row.MaxPositionValuePerSymbol,
		MaxOpenOrders:                 row.MaxOpenOrders,
		MaxOrdersPerMinute:            row.MaxOrdersPerMinute,
		DailyLossLimit:                row.DailyLossLimit,
		ConsecutiveOrderFailuresLimit: row.ConsecutiveOrderFailuresLimit,
	}
}

func (r *RiskRuleRepository) Upsert(rule types.RiskRule) error {
	row := toRiskRuleRow(rule)
	return r.db.Save(&row).Error
}

// FindPerSymbol, FindPerAccount, FindGlobal implement the three lookups the
// risk engine combines in most-specific-first order (spec §4.1).
func (r *RiskRuleRepository) FindPerSymbol(accountID, symbol string) (*types.RiskRule, error) {
	return r.findOne(r.db.Where("scope = ? AND account_id = ? AND symbol = ?", types.RiskScopePerSymbol, accountID, symbol))
}

func (r *RiskRuleRepository) FindPerAccount(accountID string) (*types.RiskRule, error) {
	return r.findOne(r.db.Where("scope = ? AND account_id = ?", types.RiskScopePerAccount, accountID))
}

func (r *RiskRuleRepository) FindGlobal() (*types.RiskRule, error) {
	return r.findOne(r.db.Where("scope = ?", types.RiskScopeGlobal))
}

func (r *RiskRuleRepository) findOne(q *gorm.DB) (*types.RiskRule, error) {
	var row RiskRuleRow
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rule := fromRiskRuleRow(row)
	return &rule, nil
}
