package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jcastroba/red-simpatizantes/internal/db"
	"github.com/jcastroba/red-simpatizantes/internal/models"
)

// ListNetworks handles GET /api/admin/networks
func (h *Handler) ListNetworks(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	roots, err := h.network.NetworkRoots(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roots)
}

// CreateNetwork handles POST /api/admin/networks
func (h *Handler) CreateNetwork(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ReferrerCode = ""

	p, err := h.people.CreateNetwork(ctx, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetNetworkVisualization handles GET /api/admin/networks/:id/visualization
func (h *Handler) GetNetworkVisualization(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.network.BuildNetworkView(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListUsers handles GET /api/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	params := models.PersonListParams{
		Page:     1,
		PageSize: db.DefaultPageSize,
		Search:   strings.TrimSpace(c.Query("q")),
	}
	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}
	if size := c.Query("page_size"); size != "" {
		if s, err := strconv.Atoi(size); err == nil && s > 0 {
			if s > db.MaxPageSize {
				s = db.MaxPageSize
			}
			params.PageSize = s
		}
	}
	if status := c.Query("status"); status != "" {
		if !models.ValidatePersonStatus(status) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "Invalid status",
				Message: "status must be 'active' or 'suspended'",
				Code:    CodeInvalidInput,
			})
			return
		}
		st := models.PersonStatus(status)
		params.Status = &st
	}

	var networkID *int64
	if raw := c.Query("network_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "Invalid network_id",
				Message: "network_id must be a positive integer",
				Code:    CodeInvalidInput,
			})
			return
		}
		networkID = &id
	}

	resp, err := h.people.List(ctx, params, networkID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetUser handles GET /api/admin/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.people.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateUser handles PATCH /api/admin/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.PersonUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.people.Update(ctx, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteUser handles DELETE /api/admin/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.people.Delete(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Sympathizer deleted"})
}

// ToggleLink handles POST /api/admin/users/:id/toggle-link
func (h *Handler) ToggleLink(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.people.ToggleLink(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "link_enabled": p.LinkEnabled})
}

// ToggleSuspension handles POST /api/admin/users/:id/toggle-suspension
func (h *Handler) ToggleSuspension(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.people.ToggleSuspension(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "is_suspended": p.IsSuspended, "is_active": !p.IsSuspended})
}
