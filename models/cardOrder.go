package models

import (
	"context"

	"github.com/maisoong/exchange_backend/utils"
	"gorm.io/gorm"
)

// SupplierCardOrder is a user's saved dashboard position for a supplier.
type SupplierCardOrder struct {
	UserId     int `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	SupplierId int `gorm:"primaryKey;autoIncrement:false;index" json:"supplier_id"`
	Position   int `gorm:"not null" json:"position"`
}

type CardPosition struct {
	SupplierId int `json:"supplier_id"`
	Position   int `json:"position"`
}

// SaveCardOrder replaces the user's whole ordering.
func (l *Ledger) SaveCardOrder(ctx context.Context, userId int, positions []CardPosition) error {
	if userId <= 0 {
		return utils.NewValidationError("user_id is required")
	}
	seen := make(map[int]bool, len(positions))
	rows := make([]SupplierCardOrder, 0, len(positions))
	ids := make([]int, 0, len(positions))
	for _, p := range positions {
		if p.SupplierId <= 0 {
			return utils.NewValidationError("supplier_id is required")
		}
		if seen[p.SupplierId] {
			return utils.NewValidationError("supplier %d listed twice", p.SupplierId)
		}
		seen[p.SupplierId] = true
		ids = append(ids, p.SupplierId)
		rows = append(rows, SupplierCardOrder{UserId: userId, SupplierId: p.SupplierId, Position: p.Position})
	}

	if len(ids) > 0 {
		count, err := utils.ResourceCountWhere[Supplier](ctx, l.db, "id IN ?", ids)
		if err != nil {
			return err
		}
		if count != int64(len(ids)) {
			return utils.NewNotFoundError("supplier")
		}
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userId).Delete(&SupplierCardOrder{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}
