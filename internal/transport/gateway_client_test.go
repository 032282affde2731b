package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayServer(t *testing.T) (*httptest.Server, *GatewayClient) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /channels/chan-1/messages", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		var msg Outbound
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "msg-1"})
	})
	mux.HandleFunc("POST /users/user-a/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "msg-2"})
	})
	mux.HandleFunc("GET /channels/chan-1/messages/msg-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message_id": "msg-1",
			"channel_id": "chan-1",
			"footer":     "Ticket ID: 7",
		})
	})
	mux.HandleFunc("POST /channels", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "parent-1", payload["parent_id"])
		_ = json.NewEncoder(w).Encode(map[string]string{"channel_id": "chan-9", "kind": "text"})
	})
	mux.HandleFunc("GET /channels/chan-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"channel_id": "chan-1", "kind": "text"})
	})
	mux.HandleFunc("GET /channels/parent-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"channel_id": "parent-1", "kind": "container"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewGatewayClient(srv.URL, "token-1", 5*time.Second)
}

func TestGatewayClient_Sends(t *testing.T) {
	_, client := newGatewayServer(t)
	ctx := context.Background()

	id, err := client.SendToChannel(ctx, "chan-1", Outbound{Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	id, err = client.SendDirect(ctx, "user-a", Outbound{Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "msg-2", id)
}

func TestGatewayClient_FetchMessage(t *testing.T) {
	_, client := newGatewayServer(t)

	delivered, err := client.FetchMessage(context.Background(), "chan-1", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "Ticket ID: 7", delivered.Footer)
}

func TestGatewayClient_CreateChannel(t *testing.T) {
	_, client := newGatewayServer(t)

	id, err := client.CreateChannel(context.Background(), "parent-1", "ticket-user-a", "")
	require.NoError(t, err)
	assert.Equal(t, "chan-9", id)
}

func TestGatewayClient_Resolve(t *testing.T) {
	_, client := newGatewayServer(t)
	ctx := context.Background()

	kind, err := client.Resolve(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, ChannelKindText, kind)

	kind, err = client.Resolve(ctx, "parent-1")
	require.NoError(t, err)
	assert.Equal(t, ChannelKindContainer, kind)

	// Unknown channels come back as 404 from the gateway and classify as none.
	kind, err = client.Resolve(ctx, "chan-gone")
	require.NoError(t, err)
	assert.Equal(t, ChannelKindNone, kind)
}
