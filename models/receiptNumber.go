package models

import (
	"context"
	"fmt"
	"time"

	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptCounter holds the last receipt sequence handed out per supplier/day.
type ReceiptCounter struct {
	SupplierId  int       `gorm:"primaryKey;autoIncrement:false" json:"supplier_id"`
	CounterDate time.Time `gorm:"primaryKey;type:date" json:"counter_date"`
	LastSeq     int       `gorm:"not null;default:0" json:"last_seq"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReceiptSequencer allocates the Nth receipt of a supplier's Bangkok day.
// tx is the transaction that will insert the sale.
type ReceiptSequencer interface {
	Next(ctx context.Context, tx *gorm.DB, supplierId int, date time.Time) (int, error)
}

// FormatReceiptNo renders MS<YYYYMMDD>-<supplier>-<NNNN>.
func FormatReceiptNo(date time.Time, supplierId int, seq int) string {
	return fmt.Sprintf("MS%s-%d-%04d", utils.CompactDate(date), supplierId, seq)
}

func countSalesOn(tx *gorm.DB, supplierId int, date time.Time) (int64, error) {
	start, end := utils.DayRange(date)
	var count int64
	err := tx.Model(&Sale{}).
		Where("supplier_id = ? AND created_at >= ? AND created_at < ?", supplierId, start, end).
		Count(&count).Error
	return count, err
}

// CounterSequencer increments a row in receipt_counters inside the sale's
// transaction. The first receipt of a day seeds from today's existing sales
// so switching modes mid-day never reuses a number.
type CounterSequencer struct{}

func (CounterSequencer) Next(ctx context.Context, tx *gorm.DB, supplierId int, date time.Time) (int, error) {
	tx = tx.WithContext(ctx)
	existing, err := countSalesOn(tx, supplierId, date)
	if err != nil {
		return 0, err
	}

	row := ReceiptCounter{
		SupplierId:  supplierId,
		CounterDate: date,
		LastSeq:     int(existing) + 1,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supplier_id"}, {Name: "counter_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_seq": gorm.Expr("last_seq + 1")}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}

	var current ReceiptCounter
	err = tx.Where("supplier_id = ? AND counter_date = ?", supplierId, date).Take(&current).Error
	if err != nil {
		return 0, err
	}
	return current.LastSeq, nil
}

// RedisSequencer keeps the counter in redis: SETNX seeds it from today's
// sale count, INCR hands out the next value.
type RedisSequencer struct {
	Client *redis.Client
	TTL    time.Duration
}

func receiptSeqKey(supplierId int, date time.Time) string {
	return fmt.Sprintf("receipt_seq:%d:%s", supplierId, utils.CompactDate(date))
}

func (s RedisSequencer) Next(ctx context.Context, tx *gorm.DB, supplierId int, date time.Time) (int, error) {
	if s.Client == nil {
		return 0, fmt.Errorf("redis receipt sequencer: client not configured")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	key := receiptSeqKey(supplierId, date)

	exists, err := s.Client.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		existing, err := countSalesOn(tx.WithContext(ctx), supplierId, date)
		if err != nil {
			return 0, err
		}
		if err := s.Client.SetNX(ctx, key, existing, ttl).Err(); err != nil {
			return 0, err
		}
	}
	n, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountSequencer is the legacy count(sales today)+1 scheme. Two
// concurrent sales can read the same count; the unique receipt_no index
// then rejects the loser.
type CountSequencer struct{}

func (CountSequencer) Next(ctx context.Context, tx *gorm.DB, supplierId int, date time.Time) (int, error) {
	existing, err := countSalesOn(tx.WithContext(ctx), supplierId, date)
	if err != nil {
		return 0, err
	}
	return int(existing) + 1, nil
}

// NewReceiptSequencer picks the sequencer for a RECEIPT_SEQUENCE mode,
// falling back to the DB counter when redis is unavailable.
func NewReceiptSequencer(mode string, client *redis.Client) ReceiptSequencer {
	switch mode {
	case config.ReceiptSequenceRedis:
		if client != nil {
			return RedisSequencer{Client: client}
		}
		return CounterSequencer{}
	case config.ReceiptSequenceCount:
		return CountSequencer{}
	default:
		return CounterSequencer{}
	}
}
