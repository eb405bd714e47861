package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/sirupsen/logrus"
)

func listSuppliersHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		suppliers, err := l.ListSuppliers(c.Request.Context())
		if err != nil {
			respondError(c, logger, "listSuppliers", err)
			return
		}
		c.JSON(http.StatusOK, suppliers)
	}
}

func dashboardHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := userIdFor(c)
		if err != nil {
			respondError(c, logger, "dashboard", err)
			return
		}
		cards, err := l.Dashboard(c.Request.Context(), userId)
		if err != nil {
			respondError(c, logger, "dashboard", err)
			return
		}
		c.JSON(http.StatusOK, cards)
	}
}

func supplierDetailHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "supplierDetail", err)
			return
		}
		detail, err := l.GetSupplierDetail(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, "supplierDetail", err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func createSupplierHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := bindJSON(c, &input); err != nil {
			respondError(c, logger, "createSupplier", err)
			return
		}
		supplier, err := l.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, logger, "createSupplier", err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func updateSupplierHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "updateSupplier", err)
			return
		}
		var input models.NewSupplier
		if err := bindJSON(c, &input); err != nil {
			respondError(c, logger, "updateSupplier", err)
			return
		}
		supplier, err := l.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, logger, "updateSupplier", err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func deleteSupplierHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "deleteSupplier", err)
			return
		}
		if _, err := l.DeleteSupplier(c.Request.Context(), id); err != nil {
			respondError(c, logger, "deleteSupplier", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Supplier deleted"})
	}
}

type cardOrderRequest struct {
	UserId int                   `json:"user_id"`
	Order  []models.CardPosition `json:"order"`
}

func saveCardOrderHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cardOrderRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, logger, "saveCardOrder", err)
			return
		}
		if req.Order == nil {
			respondError(c, logger, "saveCardOrder", utils.NewValidationError("order is required"))
			return
		}
		if id, ok := utils.GetUserIdFromContext(c.Request.Context()); ok && id > 0 {
			req.UserId = id
		}
		if err := l.SaveCardOrder(c.Request.Context(), req.UserId, req.Order); err != nil {
			respondError(c, logger, "saveCardOrder", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Card order saved"})
	}
}

func lowBalanceHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		alerts, err := l.LowBalanceAlerts(c.Request.Context())
		if err != nil {
			respondError(c, logger, "lowBalanceAlerts", err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}
