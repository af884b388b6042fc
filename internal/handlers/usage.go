package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/inkwell-backend/internal/requestdata"
	"github.com/yungbote/inkwell-backend/internal/services"
)

type UsageHandler struct {
	quotaService    services.QuotaService
	usageLogService services.UsageLogService
}

func NewUsageHandler(quotaService services.QuotaService, usageLogService services.UsageLogService) *UsageHandler {
	return &UsageHandler{quotaService: quotaService, usageLogService: usageLogService}
}

// GetMyUsage returns the caller's quota snapshot across every gated action,
// plus the estimated AI spend so far this month.
func (uh *UsageHandler) GetMyUsage(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	usage, err := uh.quotaService.GetUserUsage(c.Request.Context(), rd.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	cost, err := uh.usageLogService.MonthToDateCost(c.Request.Context(), rd.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage, "monthToDateCost": cost})
}
