package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

// IDDecrypter maps an opaque patient token to the internal patient ID
type IDDecrypter interface {
	DecryptID(token string) (string, error)
}

// PatientResolver decrypts the :patientToken path parameter and stores the
// patient ID under PatientIDKey. Requests with an unreadable token are rejected.
func PatientResolver(decrypter IDDecrypter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("patientToken")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    api.CodeValidation,
				Message: "Patient token is required",
			})
			return
		}

		patientID, err := decrypter.DecryptID(token)
		if err == nil {
			_, err = uuid.Parse(patientID)
		}
		if err != nil {
			logger.Warn("rejected patient token",
				zap.Error(err),
				zap.String("request_id", c.GetString(RequestIDKey)),
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    api.CodeValidation,
				Message: "Invalid patient token",
			})
			return
		}

		c.Set(PatientIDKey, patientID)
		c.Next()
	}
}

// PatientID returns the patient resolved by PatientResolver
func PatientID(c *gin.Context) string {
	return c.GetString(PatientIDKey)
}

// AuditClient records the caller's address and user agent for the audit trail
func AuditClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClient(c.Request.Context(), audit.Client{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
