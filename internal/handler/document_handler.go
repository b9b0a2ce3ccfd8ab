package handler

import (
	"fmt"
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/internal/workflow"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

// DocumentHandler serves the lifecycle API of one document kind under /api/<resource>.
type DocumentHandler struct {
	kind    workflow.Kind
	service service.DocumentService
	auth    *middleware.Authenticator
}

func NewDocumentHandler(kind workflow.Kind, svc service.DocumentService, auth *middleware.Authenticator) *DocumentHandler {
	return &DocumentHandler{kind: kind, service: svc, auth: auth}
}

// RegisterRoutes expects router to run Authenticate already. Edits, status
// changes and deletes are authorized per action by the service.
func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	view := h.auth.RequirePermission(workflow.Permission(h.kind, workflow.VerbView))
	create := h.auth.RequirePermission(workflow.Permission(h.kind, workflow.VerbCreate))

	docs := router.Group("/api/" + h.kind.Resource())
	{
		docs.GET("", view, h.List)
		docs.POST("", create, h.Create)
		docs.GET("/:id", view, h.Get)
		docs.PUT("/:id", view, h.Update)
		docs.GET("/:id/actions", view, h.Actions)
		docs.PATCH("/:id/status", view, h.UpdateStatus)
		docs.POST("/:id/approval", view, h.Decide)
		docs.DELETE("/:id", view, h.Delete)
	}
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{UserID: middleware.UserID(c), Permissions: middleware.Permissions(c)}
}

// List handles GET /api/{resource}
// @Summary      List documents
// @Description  Paginated documents of one kind, newest change first
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true   "purchase-orders, purchase-bills, goods-receipts, expenses or tds-deductions"
// @Param        status    query     string  false  "Filter by status"
// @Param        q         query     string  false  "Search number, title or party"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Items per page (default 20)"
// @Success      200       {object}  response.Response{data=response.Page[service.DocumentResponse]}
// @Failure      400       {object}  response.Response
// @Router       /api/{resource} [get]
func (h *DocumentHandler) List(c *gin.Context) {
	status := workflow.Status(c.Query("status"))
	if status != "" && !status.IsValid() {
		badRequest(c, fmt.Errorf("unknown status %q", status))
		return
	}
	p := pagination.Parse(c)

	docs, total, err := h.service.List(c.Request.Context(), h.kind, service.DocumentListFilter{
		Status: status,
		Query:  c.Query("q"),
		Offset: p.Offset,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.NewPage(docs, total, p.Page, p.Limit)))
}

// Create handles POST /api/{resource}
// @Summary      Create a document
// @Description  Validates the kind-specific payload, derives the amount and stores the document in its initial status
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string                         true  "Document resource"
// @Param        payload   body      service.CreateDocumentRequest  true  "Document"
// @Success      201       {object}  response.Response{data=service.DocumentResponse}
// @Failure      400       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Router       /api/{resource} [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	doc, err := h.service.Create(c.Request.Context(), h.kind, actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// Update handles PUT /api/{resource}/:id
// @Summary      Edit a document
// @Description  Replaces title, party and payload and re-derives the amount while the current status offers the edit action
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string                         true  "Document resource"
// @Param        id        path      string                         true  "Document ID"
// @Param        payload   body      service.UpdateDocumentRequest  true  "Document"
// @Success      200       {object}  response.Response{data=service.DocumentResponse}
// @Failure      400       {object}  response.Response
// @Failure      403       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Router       /api/{resource}/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	var req service.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	doc, err := h.service.Update(c.Request.Context(), h.kind, c.Param("id"), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// Get handles GET /api/{resource}/:id
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Document resource"
// @Param        id        path      string  true  "Document ID"
// @Success      200       {object}  response.Response{data=service.DocumentResponse}
// @Failure      404       {object}  response.Response
// @Router       /api/{resource}/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), h.kind, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// Actions handles GET /api/{resource}/:id/actions
// @Summary      Available actions
// @Description  Actions the caller may take on the document in its current status
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Document resource"
// @Param        id        path      string  true  "Document ID"
// @Success      200       {object}  response.Response{data=[]workflow.StatusAction}
// @Failure      404       {object}  response.Response
// @Router       /api/{resource}/{id}/actions [get]
func (h *DocumentHandler) Actions(c *gin.Context) {
	actions, err := h.service.AvailableActions(c.Request.Context(), h.kind, c.Param("id"), middleware.Permissions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, actions))
}

// UpdateStatus handles PATCH /api/{resource}/:id/status
// @Summary      Change status
// @Description  Moves the document to the target status when the current status offers that transition to the caller
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string                       true  "Document resource"
// @Param        id        path      string                       true  "Document ID"
// @Param        payload   body      service.UpdateStatusRequest  true  "Target status"
// @Success      200       {object}  response.Response{data=service.DocumentResponse}
// @Failure      403       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Router       /api/{resource}/{id}/status [patch]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	doc, err := h.service.UpdateStatus(c.Request.Context(), h.kind, c.Param("id"), actorFrom(c), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// Decide handles POST /api/{resource}/:id/approval
// @Summary      Approve or reject
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string                   true  "Document resource"
// @Param        id        path      string                   true  "Document ID"
// @Param        payload   body      service.DecisionRequest  true  "Decision"
// @Success      200       {object}  response.Response{data=service.DocumentResponse}
// @Failure      403       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Router       /api/{resource}/{id}/approval [post]
func (h *DocumentHandler) Decide(c *gin.Context) {
	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	doc, err := h.service.Decide(c.Request.Context(), h.kind, c.Param("id"), actorFrom(c), req.Decision, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// Delete handles DELETE /api/{resource}/:id
// @Summary      Delete a document
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Document resource"
// @Param        id        path      string  true  "Document ID"
// @Success      200       {object}  response.Response
// @Failure      403       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Router       /api/{resource}/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), h.kind, c.Param("id"), actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Document deleted successfully"))
}
