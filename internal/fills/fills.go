// Package fills implements the fill applier and average-cost position/PnL
// engine (spec §2 C8/C9, §4.3/§4.4). Average-cost accounting — including the
// flip-through-zero branches — is grounded on the teacher's
// execution.Executor.updatePosition, generalized from Executor's in-memory
// map to transactional, row-locked persistence.
package fills

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/errs"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// Applier ingests validated fills, applies them to the relevant position
// under a row lock, and appends ledger entries — all in one transaction per
// fill (spec §4.3, §4.4, I1-I7).
type Applier struct {
	db       *gorm.DB
	fillRepo *store.FillRepository
	ids      *idgen.Generator
	clk      clock.Clock
}

func New(db *gorm.DB, fillRepo *store.FillRepository, ids *idgen.Generator, c clock.Clock) *Applier {
	return &Applier{db: db, fillRepo: fillRepo, ids: ids, clk: c}
}

// Apply dedups by natural key, then updates the position using average-cost
// accounting and writes FILL/FEE/TAX ledger entries, all inside a single
// transaction (spec §4.3: "dedup and apply happen atomically with the
// position update").
func (a *Applier) Apply(fill types.Fill) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		exists, err := store.NewFillRepository(tx).ExistsByNaturalKey(fill.NaturalKey())
		if err != nil {
			return err
		}
		if exists {
			return &errs.DuplicateFill{OrderID: fill.OrderID}
		}

		if err := insertFillInTx(tx, fill); err != nil {
			return err
		}

		pos, version, err := store.GetForUpdate(tx, fill.AccountID, fill.Symbol)
		if err != nil {
			return err
		}
		if pos == nil {
			pos = &types.Position{
				PositionID: a.ids.New26(),
				AccountID:  fill.AccountID,
				Symbol:     fill.Symbol,
			}
		}

		updated := ApplyFillToPosition(*pos, fill)
		if err := store.UpsertWithVersion(tx, updated, version); err != nil {
			return err
		}

		now := a.clk.Now()
		if err := store.Append(tx, types.PnlLedgerEntry{
			LedgerID:       a.ids.New26(),
			AccountID:      fill.AccountID,
			Symbol:         fill.Symbol,
			EventType:      types.LedgerEventFill,
			Amount:         signedFillAmount(fill),
			RefID:          fill.FillID,
			EventTimestamp: now,
		}); err != nil {
			return err
		}
		if fill.Fee.IsPositive() {
			if err := store.Append(tx, types.PnlLedgerEntry{
				LedgerID:       a.ids.New26(),
				AccountID:      fill.AccountID,
				Symbol:         fill.Symbol,
				EventType:      types.LedgerEventFee,
				Amount:         fill.Fee.Neg(),
				RefID:          fill.FillID,
				EventTimestamp: now,
			}); err != nil {
				return err
			}
		}
		if fill.Tax.IsPositive() {
			if err := store.Append(tx, types.PnlLedgerEntry{
				LedgerID:       a.ids.New26(),
				AccountID:      fill.AccountID,
				Symbol:         fill.Symbol,
				EventType:      types.LedgerEventTax,
				Amount:         fill.Tax.Neg(),
				RefID:          fill.FillID,
				EventTimestamp: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertFillInTx(tx *gorm.DB, f types.Fill) error {
	return store.InsertFillInTx(tx, f)
}

// signedFillAmount is the cash impact of the fill itself, ignoring fee/tax:
// negative for a BUY (cash out), positive for a SELL (cash in).
func signedFillAmount(f types.Fill) decimal.Decimal {
	gross := f.FillPrice.Mul(decimal.NewFromInt(f.FillQty))
	if f.Side == types.SideBuy {
		return gross.Neg()
	}
	return gross
}
