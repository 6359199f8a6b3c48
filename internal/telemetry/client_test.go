package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, discardLogger())
}

func TestFetchStation_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/7", r.URL.Path)
		assert.Equal(t, "EstacaoMeteorologica-Dashboard/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"arrResponse":{"Temperatura":"28.6 °C"}}`))
	}))
	defer srv.Close()

	payload, err := testClient(srv.URL).FetchStation(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 200, payload.Code)
	assert.Equal(t, "28.6 °C", payload.Fields["Temperatura"])
}

func TestFetchStation_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchStation(context.Background(), 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchStation_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchStation(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestFetchStation_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchStation(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestFetchStation_TimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL).FetchStation(ctx, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantErr bool
	}{
		{"live station", `{"code":200,"arrResponse":{"Temperatura":"28"}}`, http.StatusOK, false},
		{"envelope code not 200", `{"code":404,"arrResponse":{"Temperatura":"28"}}`, http.StatusOK, true},
		{"missing arrResponse", `{"code":200}`, http.StatusOK, true},
		{"http 404", `not found`, http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := testClient(srv.URL).Probe(context.Background(), 1)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
