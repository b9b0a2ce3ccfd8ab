package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService service.RoleService
	auth        *middleware.Authenticator
}

func NewRoleHandler(roleService service.RoleService, auth *middleware.Authenticator) *RoleHandler {
	return &RoleHandler{roleService: roleService, auth: auth}
}

// RegisterRoutes expects router to run Authenticate already.
func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	manage := h.auth.RequirePermission(service.PermManageRoles)

	roles := router.Group("/api/roles", manage)
	{
		roles.GET("", h.ListRoles)
		roles.PUT("/:name/permissions", h.UpdateRolePermissions)
	}

	router.GET("/api/permissions", manage, h.ListPermissions)
}

// ListRoles returns all roles with their permissions
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// UpdateRolePermissions replaces all permissions for a role
// @Summary      Replace role permissions
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        name     path      string                                true  "Role name"
// @Param        payload  body      service.UpdateRolePermissionsRequest  true  "Permission codes"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/roles/{name}/permissions [put]
func (h *RoleHandler) UpdateRolePermissions(c *gin.Context) {
	var req service.UpdateRolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.UpdateRolePermissions(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	// Tokens of this role pick up the new permissions on their next request.
	h.auth.ClearPermissionCache(role.Name)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// ListPermissions returns every permission code grouped by resource
// @Summary      List permissions
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.PermissionResponse}
// @Router       /api/permissions [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	perms, err := h.roleService.ListPermissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}
