package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Supplier{}, &Purchase{}, &Sale{}, &DailySummary{}, &RateHistory{},
		&ReceiptCounter{}, &Setting{}, &SupplierCardOrder{}, &User{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
