package main

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/sirupsen/logrus"
)

func profitReportHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := summaryFilterFromQuery(c)
		if err != nil {
			respondError(c, logger, "profitReport", err)
			return
		}
		report, err := l.ProfitReport(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "profitReport", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func exportDailyHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, err := utils.ParseDate(c.Param("date"))
		if err != nil {
			respondError(c, logger, "exportDaily", err)
			return
		}
		export, err := l.DailyExport(c.Request.Context(), date)
		if err != nil {
			respondError(c, logger, "exportDaily", err)
			return
		}
		var buf bytes.Buffer
		if err := models.WriteDailyExcel(&buf, export); err != nil {
			respondError(c, logger, "exportDaily", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+models.DailyExportFilename(date)+`"`)
		c.Data(http.StatusOK, utils.XlsxContentType, buf.Bytes())
	}
}

func archiveDailyHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, err := utils.ParseDate(c.Param("date"))
		if err != nil {
			respondError(c, logger, "archiveDaily", err)
			return
		}
		location, err := l.ArchiveDailyExport(c.Request.Context(), date)
		if err != nil {
			respondError(c, logger, "archiveDaily", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"location": location})
	}
}

func healthHandler(l *models.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := l.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "Error", "database": "Disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "database": "Connected"})
	}
}
