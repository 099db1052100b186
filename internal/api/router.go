package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jcastroba/red-simpatizantes/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the settings the router needs besides the handler
type RouterConfig struct {
	JWTSecret  string
	CORSOrigin string
	Logger     *zap.Logger
}

// NewRouter wires middleware and routes
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	RegisterValidators()
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(logging.JSONLogger(logger))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware(cfg.CORSOrigin))

	// Health and readiness endpoints (no auth required)
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ready", h.Health)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/api/v1/sympathizers")
	{
		public.GET("/referrer/:code", h.GetReferrer)
		public.POST("", h.Register)
		public.POST("/check-cedula", h.CheckCedula)
		public.POST("/link-by-cedula", h.LinkByCedula)
		public.POST("/verify-identity", h.VerifyIdentity)
	}

	locations := router.Group("/api/v1/locations")
	{
		locations.GET("", h.ListDepartments)
		locations.GET("/:id/municipalities", h.ListMunicipalities)
	}

	me := router.Group("/api/v1/me")
	me.Use(AuthMiddleware(cfg.JWTSecret), PersonMiddleware())
	{
		me.GET("/dashboard", h.GetDashboard)
		me.GET("/network", h.GetNetwork)
		me.GET("/descendants/:id", h.CheckDescendant)
		me.GET("/level-labels", h.ListLevelLabels)
		me.PUT("/level-labels/:level", h.PutLevelLabel)
		me.DELETE("/level-labels/:level", h.DeleteLevelLabel)
		me.POST("/import", h.ImportReferrals)
	}

	admin := router.Group("/api/admin")
	admin.Use(AuthMiddleware(cfg.JWTSecret), AdminMiddleware())
	{
		admin.GET("/networks", h.ListNetworks)
		admin.POST("/networks", h.CreateNetwork)
		admin.GET("/networks/:id/visualization", h.GetNetworkVisualization)
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PATCH("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)
		admin.POST("/users/:id/toggle-link", h.ToggleLink)
		admin.POST("/users/:id/toggle-suspension", h.ToggleSuspension)
	}

	return router
}
