package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/repos"
)

type HistoryHandler struct {
	log    *logger.Logger
	audits repos.AuditRepo
}

func NewHistoryHandler(baseLog *logger.Logger, audits repos.AuditRepo) *HistoryHandler {
	return &HistoryHandler{
		log:    baseLog.With("handler", "HistoryHandler"),
		audits: audits,
	}
}

// GetHistory handles GET /api/history?user_id=. The audits array is
// always present, even when the user has no audits.
func (hh *HistoryHandler) GetHistory(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		detail(c, http.StatusBadRequest, "Missing user_id query parameter")
		return
	}

	summaries, err := hh.audits.ListByUserID(c.Request.Context(), nil, userID)
	if err != nil {
		hh.log.Error("Fetching history failed", "error", err, "user_id", userID)
		detail(c, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	if summaries == nil {
		summaries = []contract.AuditSummary{}
	}
	c.JSON(http.StatusOK, contract.HistoryResponse{Audits: summaries})
}
