package models

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetPurchases = "PURCHASES"
	sheetSales     = "SALES"
	sheetSummary   = "SUMMARY"
)

// DailyExport is everything booked on one Bangkok date.
type DailyExport struct {
	Date      time.Time     `json:"date"`
	Purchases []*Purchase   `json:"purchases"`
	Sales     []*Sale       `json:"sales"`
	Summaries []*SummaryRow `json:"summaries"`
}

func (l *Ledger) DailyExport(ctx context.Context, date time.Time) (*DailyExport, error) {
	date = utils.NormalizeDate(date)
	filter := LedgerFilter{Date: &date}
	purchases, err := l.ListPurchases(ctx, filter)
	if err != nil {
		return nil, err
	}
	sales, err := l.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	summaries, err := l.ListDailySummaries(ctx, SummaryFilter{StartDate: &date, EndDate: &date})
	if err != nil {
		return nil, err
	}
	return &DailyExport{Date: date, Purchases: purchases, Sales: sales, Summaries: summaries}, nil
}

func DailyExportFilename(date time.Time) string {
	return fmt.Sprintf("daily-report-%s.xlsx", utils.FormatDate(date))
}

// WriteDailyExcel renders the export as an xlsx workbook with one sheet
// per section.
func WriteDailyExcel(w io.Writer, export *DailyExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetPurchases); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetSales); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	purchaseRows := make([][]interface{}, 0, len(export.Purchases))
	for _, p := range export.Purchases {
		purchaseRows = append(purchaseRows, []interface{}{
			bangkokTimestamp(p.CreatedAt), p.SupplierName, num(p.MmkAmount), num(p.ExchangeRate), num(p.TotalThb), utils.DereferencePtr(p.Note),
		})
	}
	if err := writeSheet(f, sheetPurchases,
		[]string{"Time", "Supplier", "MMK", "Rate", "THB", "Note"}, purchaseRows); err != nil {
		return err
	}

	saleRows := make([][]interface{}, 0, len(export.Sales))
	for _, s := range export.Sales {
		saleRows = append(saleRows, []interface{}{
			bangkokTimestamp(s.CreatedAt), s.SupplierName, s.CustomerName, num(s.ThbAmount), num(s.ExchangeRate), num(s.TotalMmk), s.ReceiptNo,
		})
	}
	if err := writeSheet(f, sheetSales,
		[]string{"Time", "Supplier", "Customer", "THB", "Rate", "MMK", "Receipt"}, saleRows); err != nil {
		return err
	}

	summaryRows := make([][]interface{}, 0, len(export.Summaries))
	for _, r := range export.Summaries {
		summaryRows = append(summaryRows, []interface{}{
			r.SupplierName, num(r.OpeningThb), num(r.PurchasedThb), num(r.SoldThb), num(r.ClosingThb),
			num(r.ClosingMmk), num(r.ClosingAvgRate), num(r.DailyProfitThb), r.IsClosed,
		})
	}
	if err := writeSheet(f, sheetSummary,
		[]string{"Supplier", "Opening THB", "Purchased THB", "Sold THB", "Closing THB", "Closing MMK", "Avg Rate", "Profit THB", "Closed"},
		summaryRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headings []string, rows [][]interface{}) error {
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func bangkokTimestamp(t time.Time) string {
	return t.In(utils.BangkokLocation).Format("2006-01-02 15:04:05")
}

// ArchiveDailyExport uploads the day's workbook and returns its location.
func (l *Ledger) ArchiveDailyExport(ctx context.Context, date time.Time) (string, error) {
	if l.uploader == nil {
		return "", utils.NewValidationError("export archive is not configured; set EXPORT_BUCKET")
	}
	export, err := l.DailyExport(ctx, date)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteDailyExcel(&buf, export); err != nil {
		return "", err
	}
	object := "exports/" + DailyExportFilename(export.Date)
	return l.uploader.Upload(ctx, object, buf.Bytes(), utils.XlsxContentType)
}
