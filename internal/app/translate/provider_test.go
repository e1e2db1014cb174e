package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req libreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello", req.Q)
		assert.Equal(t, "es", req.Target)
		assert.Equal(t, AutoSource, req.Source)
		assert.Equal(t, "secret", req.APIKey)
		_ = json.NewEncoder(w).Encode(libreResponse{TranslatedText: "Hola"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", "secret", time.Second)
	out, err := p.Translate(context.Background(), "Hello", "es", "")
	require.NoError(t, err)
	assert.Equal(t, "Hola", out)
}

func TestHTTPProviderFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"empty", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"translatedText":""}`))
		}},
		{"error field", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"quota"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPProvider(srv.URL, "", time.Second).Translate(context.Background(), "Hello", "es", "en")
			assert.ErrorIs(t, err, domain.ErrTranslationProvider)
		})
	}
}
