package models

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/xuri/excelize/v2"
)

func TestSettings_CacheDroppedOnUpdate(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	settings, err := l.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if len(settings) != 0 {
		t.Fatalf("expected no settings yet, got %v", settings)
	}
	// callers get a copy, not the cached map
	settings["leak"] = "x"

	updated, err := l.UpdateSettings(ctx, map[string]string{SettingBusinessName: "Mae Sot Branch", "receipt_footer": "Thank you"})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated[SettingBusinessName] != "Mae Sot Branch" || len(updated) != 2 {
		t.Fatalf("expected both settings back, got %v", updated)
	}

	if _, err := l.UpdateSettings(ctx, map[string]string{SettingBusinessName: "Tachileik Branch"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	name, err := l.GetSetting(ctx, SettingBusinessName, DefaultBusinessName)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if name != "Tachileik Branch" {
		t.Fatalf("expected the upserted value, got %q", name)
	}

	fallback, err := l.GetSetting(ctx, "missing", "fallback")
	if err != nil || fallback != "fallback" {
		t.Fatalf("expected fallback, got %q, %v", fallback, err)
	}

	if _, err := l.UpdateSettings(ctx, map[string]string{}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
	if _, err := l.UpdateSettings(ctx, map[string]string{"  ": "x"}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected validation error for blank key, got %v", err)
	}
}

func TestSettings_RedisCacheSharedAcrossInstances(t *testing.T) {
	client := newMiniRedis(t)
	ctx := context.Background()
	first, clock := newTestLedger(t, WithRedisCache(client))
	second := NewLedger(first.DB(), WithClock(clock), WithRedisCache(client))

	if _, err := first.UpdateSettings(ctx, map[string]string{SettingBusinessName: "Mae Sot Branch"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	name, err := second.GetSetting(ctx, SettingBusinessName, DefaultBusinessName)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if name != "Mae Sot Branch" {
		t.Fatalf("expected the first update, got %q", name)
	}
	if n, _ := client.Exists(ctx, settingsCacheKey).Result(); n != 1 {
		t.Fatalf("expected settings cached in redis")
	}

	if _, err := first.UpdateSettings(ctx, map[string]string{SettingBusinessName: "Tachileik Branch"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	name, err = second.GetSetting(ctx, SettingBusinessName, DefaultBusinessName)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if name != "Tachileik Branch" {
		t.Fatalf("expected the other instance to see the update, got %q", name)
	}
}

func TestRegister_RequiresKey(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	input := NewUser{Username: "cashier", Email: "cashier@example.com", Password: "secret1", RegistrationKey: "anything"}

	t.Setenv("REGISTRATION_KEY", "")
	if _, err := l.Register(ctx, &input); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected registration to be disabled, got %v", err)
	}

	t.Setenv("REGISTRATION_KEY", "open-sesame")
	if _, err := l.Register(ctx, &input); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected wrong key to be rejected, got %v", err)
	}

	input.RegistrationKey = "open-sesame"
	user, err := l.Register(ctx, &input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != UserRoleStaff {
		t.Fatalf("expected staff role, got %s", user.Role)
	}

	again := NewUser{Username: "cashier", Email: "other@example.com", Password: "secret1", RegistrationKey: "open-sesame"}
	if _, err := l.Register(ctx, &again); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected duplicate username to fail validation, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.UpsertAdmin(ctx, "admin", "admin@example.com", "first-pass"); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	admin, err := l.UpsertAdmin(ctx, "admin", "admin@example.com", "second-pass")
	if err != nil {
		t.Fatalf("UpsertAdmin (reset): %v", err)
	}
	if admin.Role != UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}

	if _, err := l.Login(ctx, "admin", "first-pass"); !IsInvalidLogin(err) {
		t.Fatalf("expected the old password to be rejected, got %v", err)
	}
	if _, err := l.Login(ctx, "nobody", "second-pass"); !IsInvalidLogin(err) {
		t.Fatalf("expected unknown user to be an invalid login, got %v", err)
	}

	info, err := l.Login(ctx, " admin ", "second-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := utils.JwtValidate(info.Token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if claims.ID != admin.ID || claims.Role != string(UserRoleAdmin) {
		t.Fatalf("expected token for admin %d, got %+v", admin.ID, claims)
	}
}

func TestSupplier_CreateUpdateDelete(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	s := mustSupplier(t, l, "Counter A")
	assertDecimal(t, "low_balance_alert", "10000", s.LowBalanceAlert)

	if _, err := l.CreateSupplier(ctx, &NewSupplier{Name: " Counter A "}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected duplicate name to fail validation, got %v", err)
	}
	if _, err := l.CreateSupplier(ctx, &NewSupplier{Name: ""}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected empty name to fail validation, got %v", err)
	}
	negative := amount(t, "-1")
	if _, err := l.CreateSupplier(ctx, &NewSupplier{Name: "Counter B", LowBalanceAlert: &negative}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected negative threshold to fail validation, got %v", err)
	}

	updated, err := l.UpdateSupplier(ctx, s.ID, &NewSupplier{Name: "Counter A"})
	if err != nil {
		t.Fatalf("UpdateSupplier keeping its own name: %v", err)
	}
	assertDecimal(t, "threshold kept", "10000", updated.LowBalanceAlert)

	mustPurchase(t, l, s.ID, "100", "0.8")
	mustSale(t, l, s.ID, "10", "0.008")
	if err := l.SaveCardOrder(ctx, 1, []CardPosition{{SupplierId: s.ID, Position: 0}}); err != nil {
		t.Fatalf("SaveCardOrder: %v", err)
	}

	if _, err := l.DeleteSupplier(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSupplier: %v", err)
	}
	for name, model := range map[string]interface{}{
		"purchases":       &Purchase{},
		"sales":           &Sale{},
		"daily summaries": &DailySummary{},
		"rate history":    &RateHistory{},
		"counters":        &ReceiptCounter{},
		"card orders":     &SupplierCardOrder{},
	} {
		var count int64
		l.DB().Model(model).Where("supplier_id = ?", s.ID).Count(&count)
		if count != 0 {
			t.Fatalf("expected %s to be removed with the supplier, got %d", name, count)
		}
	}
	if _, err := l.GetSupplier(ctx, s.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected supplier to be gone, got %v", err)
	}
	if _, err := l.DeleteSupplier(ctx, s.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected second delete to be not found, got %v", err)
	}
}

func TestWriteDailyExcel(t *testing.T) {
	l, _ := newTestLedger(t)
	s := mustSupplier(t, l, "Counter A")
	ctx := context.Background()

	mustPurchase(t, l, s.ID, "1000", "0.8")
	sale := mustSale(t, l, s.ID, "100", "0.008")

	export, err := l.DailyExport(ctx, l.Today())
	if err != nil {
		t.Fatalf("DailyExport: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteDailyExcel(&buf, export); err != nil {
		t.Fatalf("WriteDailyExcel: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if strings.Join(sheets, ",") != "PURCHASES,SALES,SUMMARY" {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	rows, err := f.GetRows(sheetSales)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected heading plus one sale, got %d rows", len(rows))
	}
	if rows[1][6] != sale.ReceiptNo {
		t.Fatalf("expected receipt %s in the sales sheet, got %v", sale.ReceiptNo, rows[1])
	}
	summary, err := f.GetRows(sheetSummary)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(summary) != 2 || summary[1][0] != "Counter A" {
		t.Fatalf("expected one summary row for Counter A, got %v", summary)
	}

	if DailyExportFilename(l.Today()) != "daily-report-2024-01-02.xlsx" {
		t.Fatalf("unexpected filename %s", DailyExportFilename(l.Today()))
	}
	if _, err := l.ArchiveDailyExport(ctx, l.Today()); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected archive without an uploader to be a validation error, got %v", err)
	}
}
