package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/models"
	"github.com/sirupsen/logrus"
)

func ledgerFilterFromQuery(c *gin.Context) (models.LedgerFilter, error) {
	var filter models.LedgerFilter
	supplierId, err := queryInt(c, "supplier_id")
	if err != nil {
		return filter, err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return filter, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return filter, err
	}
	filter.SupplierId = supplierId
	filter.Date = date
	if limit != nil {
		filter.Limit = *limit
	}
	return filter, nil
}

func listPurchasesHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := ledgerFilterFromQuery(c)
		if err != nil {
			respondError(c, logger, "listPurchases", err)
			return
		}
		purchases, err := l.ListPurchases(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "listPurchases", err)
			return
		}
		c.JSON(http.StatusOK, purchases)
	}
}

func createPurchaseHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchase
		if err := bindJSON(c, &input); err != nil {
			respondError(c, logger, "createPurchase", err)
			return
		}
		purchase, err := l.RecordPurchase(c.Request.Context(), &input)
		if err != nil {
			respondError(c, logger, "createPurchase", err)
			return
		}
		c.JSON(http.StatusCreated, purchase)
	}
}

func deletePurchaseHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "deletePurchase", err)
			return
		}
		if _, err := l.DeletePurchase(c.Request.Context(), id); err != nil {
			respondError(c, logger, "deletePurchase", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Purchase deleted"})
	}
}

func listSalesHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := ledgerFilterFromQuery(c)
		if err != nil {
			respondError(c, logger, "listSales", err)
			return
		}
		sales, err := l.ListSales(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "listSales", err)
			return
		}
		c.JSON(http.StatusOK, sales)
	}
}

func createSaleHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSale
		if err := bindJSON(c, &input); err != nil {
			respondError(c, logger, "createSale", err)
			return
		}
		sale, err := l.RecordSale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, logger, "createSale", err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	}
}

func getSaleHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "getSale", err)
			return
		}
		sale, err := l.GetSale(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, "getSale", err)
			return
		}
		c.JSON(http.StatusOK, sale)
	}
}

func deleteSaleHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "deleteSale", err)
			return
		}
		if _, err := l.DeleteSale(c.Request.Context(), id); err != nil {
			respondError(c, logger, "deleteSale", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Sale deleted"})
	}
}

func receiptHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			respondError(c, logger, "receipt", err)
			return
		}
		receipt, err := l.GetReceipt(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, "receipt", err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	}
}
