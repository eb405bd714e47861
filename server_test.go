package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/middlewares"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, opts routerOptions) (*gin.Engine, *models.Ledger) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := utils.NewFixedClock(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
	logger := logrus.New()
	ledger := models.NewLedger(db, models.WithClock(clock), models.WithLogger(logger))
	return newRouter(ledger, logger, opts), ledger
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestCounterFlow(t *testing.T) {
	r, _ := newTestRouter(t, routerOptions{})

	w := doJSON(t, r, http.MethodPost, "/suppliers", map[string]any{"name": "Counter A"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create supplier: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var supplier models.Supplier
	decodeBody(t, w, &supplier)

	w = doJSON(t, r, http.MethodPost, "/purchases", map[string]any{
		"supplier_id":   supplier.ID,
		"mmk_amount":    "20,000",
		"exchange_rate": 0.0079,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create purchase: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var purchase models.Purchase
	decodeBody(t, w, &purchase)
	if !purchase.TotalThb.Equal(decimal.NewFromInt(158)) {
		t.Fatalf("expected total_thb 158, got %s", purchase.TotalThb)
	}

	w = doJSON(t, r, http.MethodPost, "/sales", map[string]any{
		"supplier_id":   supplier.ID,
		"customer_name": "Walk-in",
		"thb_amount":    "100",
		"exchange_rate": "0.008",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sale models.Sale
	decodeBody(t, w, &sale)
	if want := fmt.Sprintf("MS20240102-%d-0001", supplier.ID); sale.ReceiptNo != want {
		t.Fatalf("expected receipt %s, got %s", want, sale.ReceiptNo)
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/receipt/%d", sale.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d", w.Code)
	}
	var receipt struct {
		BusinessName string `json:"business_name"`
		ReceiptNo    string `json:"receipt_no"`
	}
	decodeBody(t, w, &receipt)
	if receipt.BusinessName != models.DefaultBusinessName || receipt.ReceiptNo != sale.ReceiptNo {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	w = doJSON(t, r, http.MethodGet, "/daily-summary/today", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("today: expected 200, got %d", w.Code)
	}
	var today models.TodaySummary
	decodeBody(t, w, &today)
	if today.Date != "2024-01-02" || len(today.Suppliers) != 1 {
		t.Fatalf("unexpected today %+v", today)
	}
	if !today.Totals.ClosingThb.Equal(decimal.NewFromInt(58)) {
		t.Fatalf("expected closing 58, got %s", today.Totals.ClosingThb)
	}

	w = doJSON(t, r, http.MethodPost, "/daily-summary/close-day", map[string]any{"supplier_id": supplier.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("close-day: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/rate-history?supplier_id=%d", supplier.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rate history: expected 200, got %d", w.Code)
	}
	var rates []models.RateHistory
	decodeBody(t, w, &rates)
	if len(rates) != 2 || rates[0].SupplierName != "Counter A" {
		t.Fatalf("expected 2 rates named by the loader, got %+v", rates)
	}
}

func TestErrorMapping(t *testing.T) {
	r, _ := newTestRouter(t, routerOptions{})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing supplier id", http.MethodPost, "/purchases", map[string]any{"mmk_amount": 100, "exchange_rate": 0.8}, http.StatusBadRequest},
		{"malformed amount", http.MethodPost, "/purchases", map[string]any{"supplier_id": 1, "mmk_amount": "abc", "exchange_rate": 0.8}, http.StatusBadRequest},
		{"mixed text amount", http.MethodPost, "/purchases", map[string]any{"supplier_id": 1, "mmk_amount": "12abc34", "exchange_rate": 0.8}, http.StatusBadRequest},
		{"amount below precision", http.MethodPost, "/purchases", map[string]any{"supplier_id": 1, "mmk_amount": "0.00001", "exchange_rate": 0.8}, http.StatusBadRequest},
		{"rate below precision", http.MethodPost, "/sales", map[string]any{"supplier_id": 1, "customer_name": "Walk-in", "thb_amount": 100, "exchange_rate": "0.000000001"}, http.StatusBadRequest},
		{"unknown supplier", http.MethodPost, "/purchases", map[string]any{"supplier_id": 42, "mmk_amount": 100, "exchange_rate": 0.8}, http.StatusNotFound},
		{"unknown sale", http.MethodGet, "/sales/7", nil, http.StatusNotFound},
		{"bad id", http.MethodDelete, "/purchases/abc", nil, http.StatusBadRequest},
		{"bad date", http.MethodGet, "/export/daily/yesterday", nil, http.StatusBadRequest},
		{"archive without bucket", http.MethodPost, "/export/daily/2024-01-02/archive", nil, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, tc.method, tc.path, tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			var body map[string]any
			decodeBody(t, w, &body)
			if _, ok := body["error"]; !ok {
				t.Fatalf("expected an error message, got %v", body)
			}
		})
	}
}

func TestExportDaily(t *testing.T) {
	r, ledger := newTestRouter(t, routerOptions{})
	s, err := ledger.CreateSupplier(t.Context(), &models.NewSupplier{Name: "Counter A"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	w := doJSON(t, r, http.MethodPost, "/purchases", map[string]any{"supplier_id": s.ID, "mmk_amount": 100, "exchange_rate": 0.8})
	if w.Code != http.StatusCreated {
		t.Fatalf("create purchase: expected 201, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/export/daily/2024-01-02", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != utils.XlsxContentType {
		t.Fatalf("unexpected content type %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "daily-report-2024-01-02.xlsx") {
		t.Fatalf("unexpected content disposition %s", cd)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected a workbook body")
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, routerOptions{})

	if w := doJSON(t, r, http.MethodGet, "/healthz", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["database"] != "Connected" {
		t.Fatalf("unexpected health body %v", body)
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("expected a correlation id header")
	}
}

func TestGatedHandler(t *testing.T) {
	gate := &gatedHandler{}

	if w := doJSON(t, gate, http.MethodGet, "/healthz", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz before ready: expected 204, got %d", w.Code)
	}
	if w := doJSON(t, gate, http.MethodGet, "/suppliers", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("suppliers before ready: expected 503, got %d", w.Code)
	}

	r, _ := newTestRouter(t, routerOptions{})
	gate.router.Store(r)
	if w := doJSON(t, gate, http.MethodGet, "/suppliers", nil); w.Code != http.StatusOK {
		t.Fatalf("suppliers after ready: expected 200, got %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	t.Setenv("AUTH_REQUIRED", "true")
	r, ledger := newTestRouter(t, routerOptions{})
	if _, err := ledger.UpsertAdmin(t.Context(), "admin", "admin@example.com", "secret-pass"); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}

	if w := doJSON(t, r, http.MethodGet, "/suppliers", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "wrong-pass"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "secret-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var info models.LoginInfo
	decodeBody(t, w, &info)

	req := httptest.NewRequest(http.MethodGet, "/suppliers", nil)
	req.Header.Set("Authorization", "Bearer "+info.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: expected 200, got %d", rec.Code)
	}

	staff, err := utils.JwtGenerate(99, "cashier", "staff")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	req = httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"business_name":"Mae Sot"}`))
	req.Header.Set("Authorization", "Bearer "+staff)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff settings update: expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/suppliers", nil)
	req.Header.Set("Authorization", "Token "+info.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: expected 401, got %d", rec.Code)
	}
}

func TestBindErrorsNameEachField(t *testing.T) {
	r, _ := newTestRouter(t, routerOptions{})

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["error"] != "password is required, username is required" {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestLoginThrottle(t *testing.T) {
	r, _ := newTestRouter(t, routerOptions{loginBuckets: middlewares.NewLoginThrottle(time.Hour, 2)})

	body := map[string]string{"username": "nobody", "password": "whatever"}
	for i := 0; i < 2; i++ {
		if w := doJSON(t, r, http.MethodPost, "/auth/login", body); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, w.Code)
		}
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/login", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", w.Code)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example ")
	if strings.Join(got, "|") != "https://a.example|https://b.example" {
		t.Fatalf("unexpected origins %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
