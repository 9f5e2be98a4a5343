package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okSchema = MustCompileSchema("ok", map[string]any{
	"type":     "object",
	"required": []string{"success"},
	"properties": map[string]any{
		"success": map[string]any{"type": "boolean"},
		"value":   map[string]any{"type": "integer"},
	},
})

type okResponse struct {
	Success bool `json:"success"`
	Value   int  `json:"value"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("test", srv.URL+"/", WithHTTPClient(srv.Client()),
		WithCredential("session", "s3cret"), WithLogger(logger.NewTestLogger(t)))
}

func TestGetJSONAttachesCredentialAndRequestID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", cookie.Value)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "go dev", r.URL.Query().Get("search"))
		w.Write([]byte(`{"success":true,"value":42}`))
	})

	var out okResponse
	err := c.GetJSON(context.Background(), "/jobs", url.Values{"search": {"go dev"}}, okSchema, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.PostJSON(context.Background(), "/api/x", map[string]string{"a": "b"}, okSchema, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestNon2xxIsServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"analyzer down"}`))
	})

	err := c.PostJSON(context.Background(), "/api/x", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindService, apperr.KindOf(err))
	assert.Equal(t, "analyzer down", apperr.Message(err))
}

func TestMalformedResponseFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing tag", `{"value":1}`},
		{"wrong type", `{"success":"yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			var out okResponse
			err := c.GetJSON(context.Background(), "/x", nil, okSchema, &out)
			assert.Equal(t, apperr.KindService, apperr.KindOf(err))
		})
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New("test", base)
	err := c.GetJSON(context.Background(), "/x", nil, nil, nil)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.GetJSON(ctx, "/x", nil, okSchema, nil)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
}

func TestPostMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Go developer", r.FormValue("job_description"))
		f, hdr, err := r.FormFile("resume")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cv.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4", string(data))
		w.Write([]byte(`{"success":true}`))
	})

	err := c.PostMultipart(context.Background(), "/upload", Multipart{
		Fields: map[string]string{"job_description": "Go developer"},
		Files: []FilePart{{
			Field: "resume", Filename: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"),
		}},
	}, okSchema, nil)
	require.NoError(t, err)
}
