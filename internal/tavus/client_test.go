package tavus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateConversation(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/conversations", r.URL.Path)
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(CreateConversationResult{
			ConversationID: "tv-1",
			Status:         "active",
			StreamURL:      "wss://stream/tv-1",
		})
	}))
	defer srv.Close()

	c := NewClient("tk-test", srv.URL, nil)
	res, err := c.CreateConversation(context.Background(), "r1234", "p5678", &ConversationProperties{Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "tv-1", res.ConversationID)
	assert.Equal(t, "active", res.Status)
	assert.Equal(t, "tk-test", gotKey)
	assert.Equal(t, "r1234", gotBody["replica_id"])
	assert.Equal(t, "p5678", gotBody["persona_id"])
	props, ok := gotBody["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "en", props["language"])
}

func TestClient_GetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/tv-1", r.URL.Path)
		json.NewEncoder(w).Encode(StatusResult{Status: "completed", VideoURL: "http://cdn/v.mp4"})
	}))
	defer srv.Close()

	c := NewClient("tk-test", srv.URL, nil)
	res, err := c.GetStatus(context.Background(), "tv-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, "http://cdn/v.mp4", res.VideoURL)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"message": "upstream busy"})
	}))
	defer srv.Close()

	c := NewClient("tk-test", srv.URL, nil)
	_, err := c.GetStatus(context.Background(), "tv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "upstream busy")
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("tk-test", srv.URL, nil)
	_, err := c.GetStatus(ctx, "tv-1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_ListReplicas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/replicas", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []Replica{{ID: "r1", Name: "Amy", Status: "ready"}},
		})
	}))
	defer srv.Close()

	c := NewClient("tk-test", srv.URL, nil)
	replicas, err := c.ListReplicas(context.Background())
	require.NoError(t, err)
	require.Len(t, replicas, 1)
	assert.Equal(t, "Amy", replicas[0].Name)
}

func TestClient_Ping(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer up.Close()
	assert.True(t, NewClient("tk", up.URL, nil).Ping(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer down.Close()
	assert.False(t, NewClient("tk", down.URL, nil).Ping(context.Background()))
}
