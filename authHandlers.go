package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/models"
	"github.com/sirupsen/logrus"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, logger, "login", err)
			return
		}
		info, err := l.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, logger, "login", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func registerHandler(l *models.Ledger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := bindJSON(c, &input); err != nil {
			respondError(c, logger, "register", err)
			return
		}
		user, err := l.Register(c.Request.Context(), &input)
		if err != nil {
			respondError(c, logger, "register", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": user.ID, "message": "Registration successful"})
	}
}
