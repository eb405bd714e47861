package main

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/sirupsen/logrus"
)

const moduleName = "http"

// respondError maps ledger errors onto status codes. Anything unexpected is
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger *logrus.Logger, funcName string, err error) {
	switch {
	case errors.Is(err, utils.ErrorValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ErrorMessage(err)})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorUnauthorized), models.IsInvalidLogin(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(logger, moduleName, funcName, c.Request.Method+" "+c.FullPath(), gin.H{"correlationId": cid}, err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

func pathId(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("invalid id %q", c.Param("id"))
	}
	return id, nil
}

// queryInt returns nil when the parameter is absent.
func queryInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, utils.NewValidationError("%s must be a number", key)
	}
	return &v, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// bindJSON reports every failing binding tag, field by field.
func bindJSON(c *gin.Context, dest any) error {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		return nil
	}
	fields := utils.ProcessValidationErrors(err)
	if len(fields) == 0 {
		return utils.NewValidationError("invalid request body: %s", err.Error())
	}
	messages := make([]string, 0, len(fields))
	for _, msg := range fields {
		messages = append(messages, msg)
	}
	sort.Strings(messages)
	return utils.NewValidationError("%s", strings.Join(messages, ", "))
}

// userIdFor prefers the token's user and falls back to ?user_id=.
func userIdFor(c *gin.Context) (int, error) {
	if id, ok := utils.GetUserIdFromContext(c.Request.Context()); ok && id > 0 {
		return id, nil
	}
	id, err := queryInt(c, "user_id")
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 1, nil
	}
	return *id, nil
}
