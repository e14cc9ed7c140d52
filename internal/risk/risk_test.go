package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	return db
}

func intPtr(i int) *int { return &i }

func TestEvaluateApprovesWithNoRuleConfigured(t *testing.T) {
	db := openTestDB(t)
	engine := New(db, store.NewRiskRuleRepository(db), clock.New())

	var decision Decision
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := engine.Evaluate(tx, OrderIntent{AccountID: "acct-1", Symbol: "005930", Qty: 10, Price: decimal.NewFromInt(70000)}, false)
		decision = d
		return err
	})
	require.NoError(t, err)
	require.True(t, decision.Approved)
}

func TestEvaluateRejectsWhenMaxOpenOrdersExceeded(t *testing.T) {
	db := openTestDB(t)
	rules := store.NewRiskRuleRepository(db)
	require.NoError(t, rules.Upsert(types.RiskRule{
		RuleID:        "rule-1",
		Scope:         types.RiskScopePerAccount,
		AccountID:     "acct-1",
		MaxOpenOrders: intPtr(1),
	}))

	engine := New(db, rules, clock.New())
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.SaveRiskStateWithVersion(tx, types.RiskState{AccountID: "acct-1", OpenOrderCount: 1}, 0)
	}))

	var decision Decision
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := engine.Evaluate(tx, OrderIntent{AccountID: "acct-1", Symbol: "005930", Qty: 10, Price: decimal.NewFromInt(70000)}, false)
		decision = d
		return err
	})
	require.NoError(t, err)
	require.False(t, decision.Approved)
}

func TestKillSwitchOnBlocksEverything(t *testing.T) {
	db := openTestDB(t)
	rules := store.NewRiskRuleRepository(db)
	engine := New(db, rules, clock.New())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.SaveRiskStateWithVersion(tx, types.RiskState{AccountID: "acct-1", KillSwitch: types.KillSwitchOn}, 0)
	}))

	var decision Decision
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := engine.Evaluate(tx, OrderIntent{AccountID: "acct-1", Symbol: "005930", Qty: 10, Price: decimal.NewFromInt(70000)}, true)
		decision = d
		return err
	})
	require.NoError(t, err)
	require.False(t, decision.Approved)
}

func TestKillSwitchArmedAllowsExposureReducingOrders(t *testing.T) {
	db := openTestDB(t)
	rules := store.NewRiskRuleRepository(db)
	engine := New(db, rules, clock.New())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.SaveRiskStateWithVersion(tx, types.RiskState{AccountID: "acct-1", KillSwitch: types.KillSwitchArmed}, 0)
	}))

	var decision Decision
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := engine.Evaluate(tx, OrderIntent{AccountID: "acct-1", Symbol: "005930", Qty: 10, Price: decimal.NewFromInt(70000)}, true)
		decision = d
		return err
	})
	require.NoError(t, err)
	require.True(t, decision.Approved)
}

func TestRecordOrderOutcomeTripsKillSwitchAfterFailureLimit(t *testing.T) {
	db := openTestDB(t)
	engine := New(db, store.NewRiskRuleRepository(db), clock.New())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.SaveRiskStateWithVersion(tx, types.RiskState{AccountID: "acct-1"}, 0)
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return engine.RecordOrderOutcome(tx, "acct-1", false, 3)
		}))
	}

	repo := store.NewRiskStateRepository(db)
	state, err := repo.Get("acct-1")
	require.NoError(t, err)
	require.Equal(t, types.KillSwitchArmed, state.KillSwitch)
}

func TestToggleKillSwitchRequiresReason(t *testing.T) {
	db := openTestDB(t)
	engine := New(db, store.NewRiskRuleRepository(db), clock.New())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.SaveRiskStateWithVersion(tx, types.RiskState{AccountID: "acct-1"}, 0)
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		return engine.ToggleKillSwitch(tx, "acct-1", types.KillSwitchOn, "")
	})
	require.Error(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return engine.ToggleKillSwitch(tx, "acct-1", types.KillSwitchOn, "manual halt: suspicious fill volume")
	})
	require.NoError(t, err)

	repo := store.NewRiskStateRepository(db)
	state, err := repo.Get("acct-1")
	require.NoError(t, err)
	require.Equal(t, types.KillSwitchOn, state.KillSwitch)
}

