package customers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadpilot_backend/platform/logger"
)

// ContextCustomerKey is the gin context key the widget auth middleware sets.
const ContextCustomerKey = "widgetCustomer"

// APIKeyAuth validates the X-API-Key header on widget routes and attaches
// the resolved tenant to the request context.
func APIKeyAuth(repo *Repository, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key",
				"code":  "MISSING_API_KEY",
			})
			return
		}

		customer, err := repo.GetByAPIKey(c.Request.Context(), apiKey)
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
				"code":  "INVALID_API_KEY",
			})
			return
		}
		if err != nil {
			log.DatabaseError("customers.GetByAPIKey", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
				"code":  "AUTH_ERROR",
			})
			return
		}

		c.Set(ContextCustomerKey, customer)
		c.Next()
	}
}

// CustomerFromContext returns the tenant the widget middleware resolved.
func CustomerFromContext(c *gin.Context) (Customer, bool) {
	value, ok := c.Get(ContextCustomerKey)
	if !ok {
		return Customer{}, false
	}
	customer, ok := value.(Customer)
	return customer, ok
}
