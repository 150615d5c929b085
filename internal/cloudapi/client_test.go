// ABOUTME: Tests for the gateway send client
// ABOUTME: Covers payload shapes, auth headers, and error handling against a test server

package cloudapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"messages":[{"id":"wamid.OUT1"}]}`)
	}))
	defer server.Close()

	client := New(server.URL, "1055512345", "token-123", nil)
	id, err := client.SendText(context.Background(), "+15551234567", "hello")
	require.NoError(t, err)

	assert.Equal(t, "wamid.OUT1", id)
	assert.Equal(t, "/1055512345/messages", gotPath)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "text", gotBody["type"])
}

func TestSendTemplate(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		io.WriteString(w, `{"messages":[{"id":"wamid.OUT2"}]}`)
	}))
	defer server.Close()

	client := New(server.URL, "1055512345", "token-123", nil)
	id, err := client.SendTemplate(context.Background(), "+15551234567",
		"appointment_reminder", "en_US", []string{"Tuesday", "3pm"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.OUT2", id)

	tmpl, ok := gotBody["template"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "appointment_reminder", tmpl["name"])

	components, ok := tmpl["components"].([]any)
	require.True(t, ok)
	require.Len(t, components, 1)
}

func TestSendTemplate_DefaultLanguage(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		io.WriteString(w, `{"messages":[{"id":"wamid.OUT2"}]}`)
	}))
	defer server.Close()

	client := New(server.URL, "1055512345", "token-123", nil)
	_, err := client.SendTemplate(context.Background(), "+15551234567", "welcome", "", nil)
	require.NoError(t, err)

	tmpl := gotBody["template"].(map[string]any)
	lang := tmpl["language"].(map[string]any)
	assert.Equal(t, "en_US", lang["code"])
}

func TestSend_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, "1055512345", "bad-token", nil)
	_, err := client.SendText(context.Background(), "+15551234567", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
