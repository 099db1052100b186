package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/services"
	"go.uber.org/zap"
)

// Pinger reports storage health
type Pinger interface {
	Health(ctx context.Context) error
}

// Handler handles HTTP requests
type Handler struct {
	people    *services.PersonService
	network   *services.NetworkService
	locations *services.LocationService
	db        Pinger
	logger    *zap.Logger
	timeout   time.Duration
}

// NewHandler creates a new handler
func NewHandler(people *services.PersonService, network *services.NetworkService, locations *services.LocationService, db Pinger, logger *zap.Logger, timeout time.Duration) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{people: people, network: network, locations: locations, db: db, logger: logger, timeout: timeout}
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid " + name,
			Message: name + " must be a positive integer",
			Code:    CodeInvalidInput,
		})
		return 0, false
	}
	return id, true
}

// Health handles GET /health and /ready
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	if err := h.db.Health(ctx); err != nil {
		h.logger.Error("health check database error", zap.Error(err))
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
		if n, err := h.people.Count(ctx); err == nil {
			checks["sympathizers_count"] = n
		} else {
			checks["sympathizers_count"] = "error"
		}
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"service":   "network-service",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// GetReferrer handles GET /api/v1/sympathizers/referrer/:code
func (h *Handler) GetReferrer(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	referrer, err := h.people.ReferrerByCode(ctx, c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nombres": referrer.Nombres, "apellidos": referrer.Apellidos})
}

// Register handles POST /api/v1/sympathizers
func (h *Handler) Register(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.people.Register(ctx, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type checkCedulaRequest struct {
	Cedula string `json:"cedula" binding:"required"`
}

// CheckCedula handles POST /api/v1/sympathizers/check-cedula
func (h *Handler) CheckCedula(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req checkCedulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	exists, hint, err := h.people.CheckCedula(ctx, req.Cedula)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := gin.H{"exists": exists}
	if exists {
		resp["phone_hint"] = hint
	}
	c.JSON(http.StatusOK, resp)
}

// LinkByCedula handles POST /api/v1/sympathizers/link-by-cedula
func (h *Handler) LinkByCedula(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req models.CedulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.people.LinkByCedula(ctx, req.Cedula)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"referral_code": p.ReferralCode,
		"nombres":       p.Nombres,
		"apellidos":     p.Apellidos,
	})
}

// VerifyIdentity handles POST /api/v1/sympathizers/verify-identity
func (h *Handler) VerifyIdentity(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req models.VerifyIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.people.VerifyIdentity(ctx, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true, "data": p})
}

// ListDepartments handles GET /api/v1/locations
func (h *Handler) ListDepartments(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	departments, err := h.locations.Departments(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

// ListMunicipalities handles GET /api/v1/locations/:id/municipalities
func (h *Handler) ListMunicipalities(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	municipalities, err := h.locations.Municipalities(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, municipalities)
}

// activeCaller resolves the token's person and rejects suspended accounts
func (h *Handler) activeCaller(ctx context.Context, c *gin.Context) (int64, bool) {
	id, _ := callerID(c)
	if _, err := h.people.RequireActive(ctx, id); err != nil {
		h.respondError(c, err)
		return 0, false
	}
	return id, true
}

// GetDashboard handles GET /api/v1/me/dashboard
func (h *Handler) GetDashboard(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	dash, err := h.network.BuildDashboard(ctx, me)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// GetNetwork handles GET /api/v1/me/network
func (h *Handler) GetNetwork(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	view, err := h.network.BuildNetworkView(ctx, me)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CheckDescendant handles GET /api/v1/me/descendants/:id
func (h *Handler) CheckDescendant(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	candidate, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	check, err := h.network.IsDescendant(ctx, me, candidate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// ListLevelLabels handles GET /api/v1/me/level-labels
func (h *Handler) ListLevelLabels(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	labels, err := h.network.ListLevelLabels(ctx, me)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, labels)
}

func parseLevel(c *gin.Context) (int, bool) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil || level < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid level",
			Message: "level must be a non-negative integer",
			Code:    CodeInvalidInput,
		})
		return 0, false
	}
	return level, true
}

// PutLevelLabel handles PUT /api/v1/me/level-labels/:level
func (h *Handler) PutLevelLabel(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	level, ok := parseLevel(c)
	if !ok {
		return
	}
	var req models.LevelLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	label, err := h.network.SetLevelLabel(ctx, me, level, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, label)
}

// DeleteLevelLabel handles DELETE /api/v1/me/level-labels/:level
func (h *Handler) DeleteLevelLabel(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	level, ok := parseLevel(c)
	if !ok {
		return
	}
	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	if err := h.network.DeleteLevelLabel(ctx, me, level); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportReferrals handles POST /api/v1/me/import
func (h *Handler) ImportReferrals(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req models.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	me, ok := h.activeCaller(ctx, c)
	if !ok {
		return
	}
	result, err := h.people.Import(ctx, me, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
