package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lekha-app/lekha-server/internal/models"
)

// ContextUserKey is the gin context key holding the authenticated user.
const ContextUserKey = "user"

// currentUser returns the authenticated user stored by the auth middleware.
func currentUser(c *gin.Context) (models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := value.(models.User)
	return user, ok
}
