package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wall_go/models"
	"wall_go/pkg/httpclient"
)

func TestRenderHidesAnonymousSender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Sender)
		assert.True(t, req.Anonymous)
		_, _ = w.Write([]byte(`{"artifact_ref":"https://cdn/7.png"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", httpclient.New(zap.NewNop(), time.Second, 0))
	ref, err := c.Render(context.Background(), &models.Submission{ID: 7, Sender: "u1", IsAnonymous: true, Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/7.png", ref)
}

func TestRenderEmptyArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", httpclient.New(zap.NewNop(), time.Second, 0))
	_, err := c.Render(context.Background(), &models.Submission{ID: 1})
	assert.ErrorIs(t, err, models.ErrRenderFailure)
}
