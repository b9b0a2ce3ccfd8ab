package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type VendorHandler struct {
	vendorService service.VendorService
	auth          *middleware.Authenticator
}

func NewVendorHandler(vendorService service.VendorService, auth *middleware.Authenticator) *VendorHandler {
	return &VendorHandler{vendorService: vendorService, auth: auth}
}

// RegisterRoutes expects router to run Authenticate already.
func (h *VendorHandler) RegisterRoutes(router *gin.RouterGroup) {
	vendors := router.Group("/api/vendors")
	{
		vendors.GET("", h.auth.RequirePermission(service.PermViewVendors), h.ListVendors)
		vendors.GET("/:id", h.auth.RequirePermission(service.PermViewVendors), h.GetVendor)
		vendors.POST("", h.auth.RequirePermission(service.PermManageVendors), h.CreateVendor)
		vendors.PUT("/:id", h.auth.RequirePermission(service.PermManageVendors), h.UpdateVendor)
		vendors.DELETE("/:id", h.auth.RequirePermission(service.PermManageVendors), h.DeleteVendor)
	}
}

// ListVendors returns vendors ordered by name
// @Summary      List vendors
// @Tags         vendors
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Search by name, PAN, GSTIN or email"
// @Param        active  query     bool    false  "Only active vendors"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page[service.VendorResponse]}
// @Router       /api/vendors [get]
func (h *VendorHandler) ListVendors(c *gin.Context) {
	p := pagination.Parse(c)

	vendors, total, err := h.vendorService.ListVendors(c.Request.Context(), service.VendorListFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("active") == "true",
		Offset:     p.Offset,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.NewPage(vendors, total, p.Page, p.Limit)))
}

// GetVendor returns one vendor with its addresses
// @Summary      Get vendor
// @Tags         vendors
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response{data=service.VendorResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [get]
func (h *VendorHandler) GetVendor(c *gin.Context) {
	vendor, err := h.vendorService.GetVendor(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// CreateVendor adds a vendor
// @Summary      Create vendor
// @Tags         vendors
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateVendorRequest  true  "Vendor"
// @Success      201      {object}  response.Response{data=service.VendorResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/vendors [post]
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	var req service.CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.vendorService.CreateVendor(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, vendor))
}

// UpdateVendor patches vendor fields; addresses, when sent, replace the old ones
// @Summary      Update vendor
// @Tags         vendors
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Vendor ID"
// @Param        payload  body      service.UpdateVendorRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.VendorResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/vendors/{id} [put]
func (h *VendorHandler) UpdateVendor(c *gin.Context) {
	var req service.UpdateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.vendorService.UpdateVendor(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// DeleteVendor soft-deletes a vendor
// @Summary      Delete vendor
// @Tags         vendors
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [delete]
func (h *VendorHandler) DeleteVendor(c *gin.Context) {
	if err := h.vendorService.DeleteVendor(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Vendor deleted successfully"))
}
