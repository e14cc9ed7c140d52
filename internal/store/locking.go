package store

import "gorm.io/gorm/clause"

// lockingClause applies a SELECT ... FOR UPDATE row lock. sqlite ignores
// locking clauses outright (single-writer already serializes it); postgres
// honors it, which is the deployment spec §5 describes for "row-level
// locking for position mutation".
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
