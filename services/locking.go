package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withLock adds a row lock where the dialect has one. The sqlite test store
// has no FOR UPDATE/SHARE syntax; its single connection serializes
// transactions instead, which gives the same ordering guarantee.
func withLock(tx *gorm.DB, strength string) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: strength})
}
