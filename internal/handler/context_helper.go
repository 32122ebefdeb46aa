package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fitbook/trainer-crm-api/internal/middleware"
	"github.com/fitbook/trainer-crm-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func trainerIDFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.TrainerID
}

// parseDay interprets a ?date= query value as a calendar day.
func parseDay(value string) (time.Time, bool) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
