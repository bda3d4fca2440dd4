package classifier

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

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "анонимно хочу сказать", req.Text)
		_, _ = w.Write([]byte(`{"is_safe":true,"anonymous":true,"is_complete":false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", httpclient.New(zap.NewNop(), time.Second, 0))
	v, err := c.Classify(context.Background(), "анонимно хочу сказать", nil)
	require.NoError(t, err)
	assert.True(t, v.IsSafe)
	require.NotNil(t, v.Anonymous)
	assert.True(t, *v.Anonymous)
	assert.False(t, v.IsComplete)
}

func TestClassifyUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "", httpclient.New(zap.NewNop(), time.Second, 0))
	_, err := c.Classify(context.Background(), "text", nil)
	assert.ErrorIs(t, err, models.ErrClassificationUnavailable)
}
