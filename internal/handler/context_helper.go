package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ucu-dw/ucu-analytics-api/internal/middleware"
	"github.com/ucu-dw/ucu-analytics-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// scopeFilters collects the recognised scope filter parameters from the
// query string. Unknown parameters are ignored here; values are validated by
// the scoping engine.
func scopeFilters(c *gin.Context) map[string]string {
	filters := make(map[string]string)
	for _, key := range []string{"faculty_id", "department_id", "program_id", "semester_id"} {
		if value := c.Query(key); value != "" {
			filters[key] = value
		}
	}
	return filters
}
