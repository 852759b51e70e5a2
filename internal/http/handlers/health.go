package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	service string
}

func NewHealthHandler(service string) *HealthHandler {
	if service == "" {
		service = "Pythagon API"
	}
	return &HealthHandler{service: service}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": h.service})
}
