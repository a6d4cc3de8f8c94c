package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_FLAG", "true")
	assert.True(t, BoolEnvVar("TEST_FLAG"))

	t.Setenv("TEST_FLAG", "false")
	assert.False(t, BoolEnvVar("TEST_FLAG"))
	assert.False(t, BoolEnvVar("TEST_FLAG_UNSET"))

	t.Setenv("TEST_PORT", "9000")
	assert.Equal(t, 9000, IntEnvVar("TEST_PORT", 8000))
	assert.Equal(t, 8000, IntEnvVar("TEST_PORT_UNSET", 8000))

	t.Setenv("TEST_DIR", "/srv/uploads")
	assert.Equal(t, "/srv/uploads", OptionalEnv("TEST_DIR"))
	assert.Equal(t, "", OptionalEnv("TEST_DIR_UNSET"))
}

func TestURLParamUUID(t *testing.T) {
	var got uuid.UUID
	var gotErr error

	r := chi.NewRouter()
	r.Get("/items/{item_id}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = URLParamUUID(req, "item_id")
	})

	id := uuid.New()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/"+id.String(), nil))
	assert.NoError(t, gotErr)
	assert.Equal(t, id, got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/not-a-uuid", nil))
	assert.Error(t, gotErr)
}
