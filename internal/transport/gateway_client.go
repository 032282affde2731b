package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// GatewayClient talks to the chat-platform gateway over its REST surface.
// It implements Sender, MessageFetcher and ChannelDirectory.
type GatewayClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewGatewayClient builds a client for the gateway at baseURL.
func NewGatewayClient(baseURL, token string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

type channelResponse struct {
	ChannelID string `json:"channel_id"`
	Kind      string `json:"kind"`
}

type deliveredResponse struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Footer    string `json:"footer"`
}

// SendToChannel delivers a message into a channel.
func (g *GatewayClient) SendToChannel(ctx context.Context, channelID string, msg Outbound) (string, error) {
	var resp sendResponse
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := g.do(ctx, http.MethodPost, path, msg, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// SendDirect delivers a message to a user's private channel.
func (g *GatewayClient) SendDirect(ctx context.Context, userID string, msg Outbound) (string, error) {
	var resp sendResponse
	path := fmt.Sprintf("/users/%s/messages", url.PathEscape(userID))
	if err := g.do(ctx, http.MethodPost, path, msg, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// FetchMessage retrieves a delivered message's metadata.
func (g *GatewayClient) FetchMessage(ctx context.Context, channelID, messageID string) (*Delivered, error) {
	var resp deliveredResponse
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &Delivered{
		MessageID: resp.MessageID,
		ChannelID: resp.ChannelID,
		Footer:    resp.Footer,
	}, nil
}

// CreateChannel creates a leaf channel under the parent container.
func (g *GatewayClient) CreateChannel(ctx context.Context, parentID, name, topic string) (string, error) {
	payload := map[string]string{"parent_id": parentID, "name": name, "topic": topic}
	var resp channelResponse
	if err := g.do(ctx, http.MethodPost, "/channels", payload, &resp); err != nil {
		return "", err
	}
	return resp.ChannelID, nil
}

// Resolve classifies a channel identifier.
func (g *GatewayClient) Resolve(ctx context.Context, channelID string) (ChannelKind, error) {
	var resp channelResponse
	path := fmt.Sprintf("/channels/%s", url.PathEscape(channelID))
	err := g.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		if httpErr, ok := err.(*gatewayError); ok && httpErr.status == http.StatusNotFound {
			return ChannelKindNone, nil
		}
		return ChannelKindNone, err
	}
	switch resp.Kind {
	case "text":
		return ChannelKindText, nil
	case "container", "category":
		return ChannelKindContainer, nil
	default:
		return ChannelKindNone, nil
	}
}

type gatewayError struct {
	status int
	path   string
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d for %s", e.status, e.path)
}

func (g *GatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &gatewayError{status: resp.StatusCode, path: path}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
