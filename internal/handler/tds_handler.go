package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type TDSHandler struct {
	tdsService service.TDSService
	auth       *middleware.Authenticator
}

func NewTDSHandler(tdsService service.TDSService, auth *middleware.Authenticator) *TDSHandler {
	return &TDSHandler{tdsService: tdsService, auth: auth}
}

// RegisterRoutes expects router to run Authenticate already.
func (h *TDSHandler) RegisterRoutes(router *gin.RouterGroup) {
	tds := router.Group("/api/tds-sections")
	{
		tds.GET("", h.auth.RequirePermission(service.PermViewTDSSections), h.ListSections)
		tds.POST("", h.auth.RequirePermission(service.PermManageTDSSections), h.CreateSection)
		tds.DELETE("/:id", h.auth.RequirePermission(service.PermManageTDSSections), h.DeleteSection)
	}
}

// ListSections returns TDS section rules, latest effective date first
// @Summary      List TDS section rules
// @Tags         tds
// @Produce      json
// @Security     BearerAuth
// @Param        section  query     string  false  "Filter by section, e.g. 194C"
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Items per page (default 20)"
// @Success      200      {object}  response.Response{data=response.Page[service.TDSSectionResponse]}
// @Router       /api/tds-sections [get]
func (h *TDSHandler) ListSections(c *gin.Context) {
	p := pagination.Parse(c)

	rules, total, err := h.tdsService.ListSections(c.Request.Context(), c.Query("section"), p.Offset, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.NewPage(rules, total, p.Page, p.Limit)))
}

// CreateSection adds a rate rule for a section
// @Summary      Create TDS section rule
// @Description  Rules of one section must not overlap in time
// @Tags         tds
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTDSSectionRequest  true  "Rule"
// @Success      201      {object}  response.Response{data=service.TDSSectionResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/tds-sections [post]
func (h *TDSHandler) CreateSection(c *gin.Context) {
	var req service.CreateTDSSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rule, err := h.tdsService.CreateSection(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// DeleteSection removes a rate rule
// @Summary      Delete TDS section rule
// @Tags         tds
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tds-sections/{id} [delete]
func (h *TDSHandler) DeleteSection(c *gin.Context) {
	if err := h.tdsService.DeleteSection(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "TDS section rule deleted successfully"))
}
