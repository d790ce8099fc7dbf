package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/config"
)

func TestNewWithoutTokenIsNop(t *testing.T) {
	n := New(config.WhatsAppConfig{})
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "hello"))
}

func TestWhatsAppNotify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/123/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	n := New(config.WhatsAppConfig{
		AccessToken:   "secret",
		PhoneNumberID: "123",
		To:            "38640111222",
		BaseURL:       srv.URL + "/",
		APIVersion:    "v20.0",
	})
	require.NoError(t, n.Notify(context.Background(), "Hay is short"))

	assert.Equal(t, "38640111222", got["to"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "Hay is short", got["text"].(map[string]any)["body"])
}

func TestWhatsAppNotifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer srv.Close()

	n := NewWhatsApp(config.WhatsAppConfig{AccessToken: "bad", PhoneNumberID: "1", To: "2", BaseURL: srv.URL, APIVersion: "v20.0"})
	err := n.Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code=190")
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
}
