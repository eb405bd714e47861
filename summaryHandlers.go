package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/middlewares"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/sirupsen/logrus"
)

type summaryRequest struct {
	SupplierId int    `json:"supplier_id"`
	Date       string `json:"date"`
}

func (r *summaryRequest) validate() error {
	if r.SupplierId <= 0 {
		return utils.NewValidationError("supplier_id is required")
	}
	return nil
}

func (r *summaryRequest) date() (time.Time, error) {
	if strings.TrimSpace(r.Date) == "" {
		return time.Time{}, nil
	}
	return utils.ParseDate(r.Date)
}

func summaryFilterFromQuery(c *gin.Context) (models.SummaryFilter, error) {
	var filter models.SummaryFilter
	supplierId, err := queryInt(c, "supplier_id")
	if err != nil {
		return filter, err
	}
	start, err := queryDate(c, "start_date")
	if err != nil {
		return filter, err
	}
	end, err := queryDate(c, "end_date")
	if err != nil {
		return filter, err
	}
	filter.SupplierId = supplierId
	filter.StartDate = start
	filter.EndDate = end
	return filter, nil
}

func listDailySummariesHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := summaryFilterFromQuery(c)
		if err != nil {
			respondError(c, logger, "listDailySummaries", err)
			return
		}
		rows, err := l.ListDailySummaries(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "listDailySummaries", err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func todaySummaryHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		today, err := l.TodaySummaries(c.Request.Context())
		if err != nil {
			respondError(c, logger, "todaySummaries", err)
			return
		}
		c.JSON(http.StatusOK, today)
	}
}

func ensureSummaryHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req summaryRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, logger, "ensureSummary", err)
			return
		}
		if err := req.validate(); err != nil {
			respondError(c, logger, "ensureSummary", err)
			return
		}
		date, err := req.date()
		if err != nil {
			respondError(c, logger, "ensureSummary", err)
			return
		}
		row, err := l.EnsureDailySummary(c.Request.Context(), req.SupplierId, date)
		if err != nil {
			respondError(c, logger, "ensureSummary", err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func recomputeSummaryHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req summaryRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, logger, "recomputeSummary", err)
			return
		}
		if err := req.validate(); err != nil {
			respondError(c, logger, "recomputeSummary", err)
			return
		}
		row, err := l.RecomputeToday(c.Request.Context(), req.SupplierId)
		if err != nil {
			respondError(c, logger, "recomputeSummary", err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func closeDayHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req summaryRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, logger, "closeDay", err)
			return
		}
		if err := req.validate(); err != nil {
			respondError(c, logger, "closeDay", err)
			return
		}
		row, err := l.CloseDay(c.Request.Context(), req.SupplierId)
		if err != nil {
			respondError(c, logger, "closeDay", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Day closed successfully", "summary": row})
	}
}

func listRateHistoryHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.RateFilter
		var err error
		if filter.SupplierId, err = queryInt(c, "supplier_id"); err != nil {
			respondError(c, logger, "listRateHistory", err)
			return
		}
		if raw := strings.TrimSpace(c.Query("rate_type")); raw != "" {
			rateType := models.RateType(raw)
			filter.RateType = &rateType
		}
		if filter.StartDate, err = queryDate(c, "start_date"); err != nil {
			respondError(c, logger, "listRateHistory", err)
			return
		}
		if filter.EndDate, err = queryDate(c, "end_date"); err != nil {
			respondError(c, logger, "listRateHistory", err)
			return
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			respondError(c, logger, "listRateHistory", err)
			return
		}
		filter.Limit = 100
		if limit != nil && *limit > 0 {
			filter.Limit = *limit
		}

		rows, err := l.ListRateHistory(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "listRateHistory", err)
			return
		}
		ids := make([]int, len(rows))
		for i, r := range rows {
			ids[i] = r.SupplierId
		}
		names := middlewares.SupplierNames(c.Request.Context(), ids)
		for _, r := range rows {
			r.SupplierName = names[r.SupplierId]
		}
		c.JSON(http.StatusOK, rows)
	}
}

func rateStatsHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplierId, err := queryInt(c, "supplier_id")
		if err != nil {
			respondError(c, logger, "rateStats", err)
			return
		}
		days, err := queryInt(c, "days")
		if err != nil {
			respondError(c, logger, "rateStats", err)
			return
		}
		n := models.DefaultRateStatDays
		if days != nil {
			n = *days
		}
		stats, err := l.RateStats(c.Request.Context(), supplierId, n)
		if err != nil {
			respondError(c, logger, "rateStats", err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
