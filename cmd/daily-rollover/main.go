// daily-rollover runs the "today" rollover from a scheduler.
//
// Usage:
//
//	go run ./cmd/daily-rollover recompute [--supplier-id 3]
//	go run ./cmd/daily-rollover close-day [--supplier-id 3]
//	go run ./cmd/daily-rollover archive [--date 2024-01-02]
//	go run ./cmd/daily-rollover migrate
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/urfave/cli/v2"
)

var ledger *models.Ledger

func supplierFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "supplier-id",
		Usage: "Only this supplier (default: all suppliers)",
	}
}

func initLedger(c *cli.Context) error {
	db := config.ConnectDatabaseWithRetry()
	if db == nil {
		return fmt.Errorf("database not initialized. Set DB_* env vars")
	}
	opts := []models.Option{models.WithLogger(config.GetLogger())}
	if rdb := config.ConnectRedisWithRetry(c.Context); rdb != nil {
		opts = append(opts,
			models.WithLocker(config.GetRedisLock()),
			models.WithRedisCache(rdb),
			models.WithReceiptSequencer(models.NewReceiptSequencer(config.ReceiptSequenceMode(), rdb)),
		)
	}
	if uploader := utils.NewGCSUploaderFromEnv(); uploader != nil {
		opts = append(opts, models.WithExportUploader(uploader))
	}
	ledger = models.NewLedger(db, opts...)
	return nil
}

func closeLedger(c *cli.Context) error {
	if ledger == nil {
		return nil
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	sqlDB, err := ledger.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func targetSuppliers(c *cli.Context) ([]int, error) {
	if id := c.Int("supplier-id"); id > 0 {
		return []int{id}, nil
	}
	suppliers, err := ledger.ListSuppliers(c.Context)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(suppliers))
	for i, s := range suppliers {
		ids[i] = s.ID
	}
	return ids, nil
}

func runRecompute(c *cli.Context) error {
	ids, err := targetSuppliers(c)
	if err != nil {
		return err
	}
	for _, id := range ids {
		row, err := ledger.RecomputeToday(c.Context, id)
		if err != nil {
			return fmt.Errorf("supplier %d: %w", id, err)
		}
		fmt.Printf("supplier=%d date=%s closing_thb=%s closing_mmk=%s avg_rate=%s profit_thb=%s\n",
			id, utils.FormatDate(row.SummaryDate), row.ClosingThb, row.ClosingMmk, row.ClosingAvgRate, row.DailyProfitThb)
	}
	return nil
}

func runCloseDay(c *cli.Context) error {
	ids, err := targetSuppliers(c)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := ledger.RecomputeToday(c.Context, id); err != nil {
			return fmt.Errorf("supplier %d: %w", id, err)
		}
		row, err := ledger.CloseDay(c.Context, id)
		if err != nil {
			return fmt.Errorf("supplier %d: %w", id, err)
		}
		fmt.Printf("supplier=%d date=%s closed_at=%s\n", id, utils.FormatDate(row.SummaryDate), row.ClosedAt.Format("15:04:05"))
	}
	return nil
}

func runArchive(c *cli.Context) error {
	date := ledger.Today()
	if raw := c.String("date"); raw != "" {
		d, err := utils.ParseDate(raw)
		if err != nil {
			return err
		}
		date = d
	}
	location, err := ledger.ArchiveDailyExport(c.Context, date)
	if err != nil {
		return err
	}
	fmt.Printf("archived %s to %s\n", utils.FormatDate(date), location)
	return nil
}

func runMigrate(c *cli.Context) error {
	if err := models.MigrateTable(ledger.DB()); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func main() {
	app := &cli.App{
		Name:  "daily-rollover",
		Usage: "Refresh, close and archive today's exchange books",
		Commands: []*cli.Command{
			{
				Name:   "recompute",
				Usage:  "Ensure and recompute today's summary",
				Flags:  []cli.Flag{supplierFlag()},
				Before: initLedger,
				After:  closeLedger,
				Action: runRecompute,
			},
			{
				Name:   "close-day",
				Usage:  "Recompute then mark today's summary closed",
				Flags:  []cli.Flag{supplierFlag()},
				Before: initLedger,
				After:  closeLedger,
				Action: runCloseDay,
			},
			{
				Name:  "archive",
				Usage: "Upload a day's xlsx export to EXPORT_BUCKET",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "date",
						Usage:   "Bangkok date (YYYY-MM-DD), defaults to today",
						EnvVars: []string{"ARCHIVE_DATE"},
					},
				},
				Before: initLedger,
				After:  closeLedger,
				Action: runArchive,
			},
			{
				Name:   "migrate",
				Usage:  "Apply schema migrations (pair with SKIP_MIGRATIONS=true on the server)",
				Before: initLedger,
				After:  closeLedger,
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
