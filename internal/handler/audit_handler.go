package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Authenticator
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Authenticator) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

// RegisterRoutes expects router to run Authenticate already.
func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs", h.auth.RequirePermission(service.PermViewAuditLogs))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated audit records, newest first
// @Summary      Get audit logs
// @Description  Audit trail of document, TDS rule and user changes
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_kind  query     string  false  "Filter by entity kind, e.g. purchase_order"
// @Param        entity_id    query     string  false  "Filter by entity ID"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.Page[service.AuditLogResponse]}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditFilter{
		EntityKind: c.Query("entity_kind"),
		EntityID:   c.Query("entity_id"),
		Offset:     p.Offset,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.NewPage(logs, total, p.Page, p.Limit)))
}
