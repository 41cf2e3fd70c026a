package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"go.uber.org/zap"
)

type stubDecrypter map[string]string

func (s stubDecrypter) DecryptID(token string) (string, error) {
	id, ok := s[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return id, nil
}

func TestPatientResolver(t *testing.T) {
	const patientID = "6f1c2b9e-8d4a-4f3e-9a51-2b7c1d0e4f88"
	decrypter := stubDecrypter{
		"good":    patientID,
		"notuuid": "patient-42",
	}

	router := gin.New()
	router.GET("/patients/:patientToken/notes", PatientResolver(decrypter, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, PatientID(c))
	})

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{name: "valid token", token: "good", wantStatus: http.StatusOK, wantBody: patientID},
		{name: "undecryptable token", token: "forged", wantStatus: http.StatusBadRequest},
		{name: "decrypts to non uuid", token: "notuuid", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/patients/"+tt.token+"/notes", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
			}
		})
	}
}

func TestAuditClient(t *testing.T) {
	router := gin.New()
	router.GET("/patients/:patientToken/export", AuditClient(), func(c *gin.Context) {
		client, ok := audit.ClientFrom(c.Request.Context())
		require.True(t, ok)
		c.String(http.StatusOK, client.IPAddress+" "+client.UserAgent)
	})

	req := httptest.NewRequest("GET", "/patients/x/export", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "rarecare-app/2.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.7 rarecare-app/2.1", w.Body.String())
}
