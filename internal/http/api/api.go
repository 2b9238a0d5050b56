// Package api wires the HTTP routes, middleware, and handlers.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lekha-app/lekha-server/internal/config"
	"github.com/lekha-app/lekha-server/internal/http/api/handlers"
	"github.com/lekha-app/lekha-server/internal/mail"
	"github.com/lekha-app/lekha-server/internal/models"
	"github.com/lekha-app/lekha-server/internal/security"
)

// RegisterRoutes registers API routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, mailer mail.Mailer) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, mailer)
	apiGroup.POST("/register", authHandler.Register)
	apiGroup.POST("/login", authHandler.Login)
	apiGroup.POST("/verify-otp", authHandler.VerifyOtp)

	authed := apiGroup.Group("")
	authed.Use(sessionAuthMiddleware(db, jwtCfg))

	docHandler := handlers.NewDocumentHandler(db)
	authed.POST("/add-doc", docHandler.Create)
	authed.GET("/get-doc/all", docHandler.All)
	authed.GET("/get-doc/recent", docHandler.Recent)
	authed.GET("/get-doc/filter", docHandler.Filter)
	authed.PUT("/doc/:id", docHandler.Update)
	authed.DELETE("/doc/:id", docHandler.Delete)

	pinHandler := handlers.NewAdminPinHandler(db, mailer)
	pinGroup := authed.Group("/admin/pin")
	pinGroup.GET("/status", pinHandler.Status)
	pinGroup.POST("/init", pinHandler.InitSetup)
	pinGroup.POST("/verify-otp", pinHandler.VerifyOtp)
	pinGroup.POST("/set", pinHandler.SetPin)
	pinGroup.POST("/verify", pinHandler.VerifyPin)
}

// sessionAuthMiddleware validates session JWTs and loads the user into context.
func sessionAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "empty token"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
			return
		}

		c.Set(handlers.ContextUserKey, user)
		c.Next()
	}
}
