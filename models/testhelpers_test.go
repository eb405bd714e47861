package models

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 2024-01-02 10:00 in Bangkok.
var testNow = time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *utils.FixedClock) {
	t.Helper()
	clock := utils.NewFixedClock(testNow)
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewLedger(openTestDB(t), opts...), clock
}

func mustSupplier(t *testing.T, l *Ledger, name string) *Supplier {
	t.Helper()
	s, err := l.CreateSupplier(context.Background(), &NewSupplier{Name: name})
	if err != nil {
		t.Fatalf("CreateSupplier(%s): %v", name, err)
	}
	return s
}

func mustPurchase(t *testing.T, l *Ledger, supplierId int, mmk, rate string) *Purchase {
	t.Helper()
	p, err := l.RecordPurchase(context.Background(), &NewPurchase{
		SupplierId:   supplierId,
		MmkAmount:    amount(t, mmk),
		ExchangeRate: amount(t, rate),
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	return p
}

func mustSale(t *testing.T, l *Ledger, supplierId int, thb, rate string) *Sale {
	t.Helper()
	s, err := l.RecordSale(context.Background(), &NewSale{
		SupplierId:   supplierId,
		CustomerName: "Walk-in",
		ThbAmount:    amount(t, thb),
		ExchangeRate: amount(t, rate),
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	return s
}

func amount(t *testing.T, raw string) utils.Amount {
	t.Helper()
	d, err := utils.ParseAmount(raw)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", raw, err)
	}
	return utils.Amount(d)
}

func dec(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func assertDecimal(t *testing.T, field string, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", field, want, got)
	}
}

// recordingPublisher captures ledger events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []config.LedgerEventMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg config.LedgerEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.ReferenceType + ":" + e.Action
	}
	return out
}
