package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	require.NotNil(t, doc.Paths.Find("/api/v1/patients/{patientToken}/tracking/{condition}/import"))

	for _, name := range []string{"ErrorResponse", "Envelope", "InsightsResponse", "HealthResponse"} {
		assert.Contains(t, doc.Components.Schemas, name)
	}

	codes := doc.Components.Schemas["ErrorResponse"].Value.Properties["code"].Value.Enum
	assert.ElementsMatch(t, []any{CodeValidation, CodeNotFound, CodeConflict, CodeTooLarge, CodeInternal}, codes)
}
