package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// RiskStateRepository persists types.RiskState, one row per account plus
// one GlobalRiskAccountID row (spec §3, §9 Open Question resolution:
// rollback the whole risk-state mutation, including the frequency tracker,
// within the evaluating transaction on any downstream failure).
type RiskStateRepository struct {
	db *gorm.DB
}

func NewRiskStateRepository(db *gorm.DB) *RiskStateRepository {
	return &RiskStateRepository{db: db}
}

func encodeTracker(ts []time.Time) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strconv.FormatInt(t.UnixNano(), 10)
	}
	return strings.Join(parts, ",")
}

func decodeTracker(csv string) []time.Time {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, time.Unix(0, n))
	}
	return out
}

func toRiskStateRow(s types.RiskState) RiskStateRow {
	accountKey := s.AccountID
	if accountKey == "" {
		accountKey = GlobalRiskAccountID
	}
	return RiskStateRow{
		AccountID:                accountKey,
		Scope:                    string(s.Scope),
		KillSwitch:               string(s.KillSwitch),
		KillSwitchReason:         s.KillSwitchReason,
		DailyPnl:                 s.DailyPnl,
		Exposure:                 s.Exposure,
		ConsecutiveOrderFailures: s.ConsecutiveOrderFailures,
		OpenOrderCount:           s.OpenOrderCount,
		OrderFrequencyTrackerCSV: encodeTracker(s.OrderFrequencyTracker),
		Version:                  s.Version,
	}
}

func fromRiskStateRow(row RiskStateRow) types.RiskState {
	accountID := row.AccountID
	if accountID == GlobalRiskAccountID {
		accountID = ""
	}
	return types.RiskState{
		AccountID:                accountID,
		Scope:                    types.RiskRuleScope(row.Scope),
		KillSwitch:               types.KillSwitchState(row.KillSwitch),
		KillSwitchReason:         row.KillSwitchReason,
		DailyPnl:                 row.DailyPnl,
		Exposure:                 row.Exposure,
		ConsecutiveOrderFailures: row.ConsecutiveOrderFailures,
		OpenOrderCount:           row.OpenOrderCount,
		OrderFrequencyTracker:    decodeTracker(row.OrderFrequencyTrackerCSV),
		Version:                  row.Version,
	}
}

// GetRiskStateForUpdate loads and row-locks the risk state for an account
// (or the GLOBAL row when accountID is empty), within tx. Returns the
// state's version alongside it so callers can round-trip it into
// SaveRiskStateWithVersion without a second read.
func GetRiskStateForUpdate(tx *gorm.DB, accountID string) (*types.RiskState, int64, error) {
	key := accountID
	if key == "" {
		key = GlobalRiskAccountID
	}
	var row RiskStateRow
	err := tx.Clauses(lockingClause()).Where("account_id = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	s := fromRiskStateRow(row)
	return &s, row.Version, nil
}

// SaveRiskStateWithVersion writes s back with an optimistic-concurrency check
// (spec §3 Version field), failing with ErrRiskStateVersionConflict if
// another writer advanced the row first.
func SaveRiskStateWithVersion(tx *gorm.DB, s types.RiskState, expectedVersion int64) error {
	row := toRiskStateRow(s)
	if expectedVersion == 0 {
		row.Version = 1
		return tx.Create(&row).Error
	}
	result := tx.Model(&RiskStateRow{}).
		Where("account_id = ? AND version = ?", row.AccountID, expectedVersion).
		Updates(map[string]interface{}{
			"scope":                         row.Scope,
			"kill_switch":                   row.KillSwitch,
			"kill_switch_reason":            row.KillSwitchReason,
			"daily_pnl":                     row.DailyPnl,
			"exposure":                      row.Exposure,
			"consecutive_order_failures":    row.ConsecutiveOrderFailures,
			"open_order_count":              row.OpenOrderCount,
			"order_frequency_tracker_csv":   row.OrderFrequencyTrackerCSV,
			"version":                       expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRiskStateVersionConflict
	}
	return nil
}

func (r *RiskStateRepository) Get(accountID string) (*types.RiskState, error) {
	key := accountID
	if key == "" {
		key = GlobalRiskAccountID
	}
	var row RiskStateRow
	err := r.db.Where("account_id = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := fromRiskStateRow(row)
	return &s, nil
}

var ErrRiskStateVersionConflict = errors.New("store: risk state version conflict, retry")
