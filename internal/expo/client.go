package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultPushURL = "https://exp.host/--/api/v2/push/send"

// Ticket error codes that mean the token will never work again.
const (
	ErrDeviceNotRegistered = "DeviceNotRegistered"
	ErrInvalidCredentials  = "InvalidCredentials"
)

// IsExpoToken reports whether token has the shape the Expo push service issues.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

type Message struct {
	To       string                 `json:"to"`
	Sound    string                 `json:"sound"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Data     map[string]interface{} `json:"data"`
	Badge    int                    `json:"badge"`
	Priority string                 `json:"priority"`
}

type TicketDetails struct {
	Error string `json:"error"`
}

type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultPushURL
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessages submits the whole batch in one request and returns one ticket
// per message, in order.
func (c *Client) SendMessages(ctx context.Context, messages []Message) ([]Ticket, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(messages); err != nil {
		return nil, fmt.Errorf("expo: encode messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("expo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("expo: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("expo: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo: push gateway returned %d: %s", resp.StatusCode, raw)
	}

	var body struct {
		Data []Ticket `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("expo: malformed response: %w", err)
	}
	return body.Data, nil
}
