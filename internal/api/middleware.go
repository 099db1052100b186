package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jcastroba/red-simpatizantes/internal/models"
)

// Context keys set by AuthMiddleware
const (
	ctxPersonID = "person_id"
	ctxRole     = "role"
)

// RoleAdmin is the role claim that grants /api/admin
const RoleAdmin = "Admin"

// AuthMiddleware validates the HS256 bearer token and stores the caller's person id and role
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Authorization header required",
				Message: "Please provide a valid authorization token",
			})
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid authorization format",
				Message: "Authorization header must be in format 'Bearer <token>'",
			})
			return
		}

		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Server not configured",
				Message: "JWT secret missing",
			})
			return
		}

		token, err := jwt.Parse(tokenParts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid token",
				Message: "The provided token is invalid or expired",
			})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid token claims"})
			return
		}
		if r, ok := claims["role"].(string); ok {
			c.Set(ctxRole, r)
		}
		if id, err := claimID(claims["person_id"]); err == nil {
			c.Set(ctxPersonID, id)
		}

		c.Next()
	}
}

// claimID accepts numeric or string person_id claims
func claimID(v interface{}) (int64, error) {
	switch id := v.(type) {
	case float64:
		if id <= 0 || id != float64(int64(id)) {
			return 0, fmt.Errorf("invalid person_id %v", id)
		}
		return int64(id), nil
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid person_id %q", id)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("missing person_id")
	}
}

// PersonMiddleware requires the token to identify a person
func PersonMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := callerID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid token claims",
				Message: "Token does not identify a sympathizer",
			})
			return
		}
		c.Next()
	}
}

// AdminMiddleware ensures the token carries the Admin role
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		if role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "Admin access required",
				Message: "Valid admin role required",
			})
			return
		}
		c.Next()
	}
}

func callerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxPersonID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// CORSMiddleware restricts origins to origin when set, otherwise allows all
func CORSMiddleware(origin string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}
	if origin != "" {
		cfg.AllowOrigins = strings.Split(origin, ",")
		for i := range cfg.AllowOrigins {
			cfg.AllowOrigins[i] = strings.TrimSpace(cfg.AllowOrigins[i])
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
