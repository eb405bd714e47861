package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/models"
	"github.com/sirupsen/logrus"
)

func getSettingsHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := l.GetSettings(c.Request.Context())
		if err != nil {
			respondError(c, logger, "getSettings", err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

func updateSettingsHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input map[string]string
		if err := bindJSON(c, &input); err != nil {
			respondError(c, logger, "updateSettings", err)
			return
		}
		settings, err := l.UpdateSettings(c.Request.Context(), input)
		if err != nil {
			respondError(c, logger, "updateSettings", err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}
