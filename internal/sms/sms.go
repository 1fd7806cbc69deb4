package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.smsonlinegh.com/v5/message/sms/send"

// Notifier delivers a plain-text SMS. Callers treat delivery as best-effort.
type Notifier interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// Disabled is selected at startup when no SMS credentials are configured.
type Disabled struct{}

func (Disabled) Send(ctx context.Context, phoneNumber, message string) error {
	return nil
}

type ZenophClient struct {
	apiKey   string
	senderID string
	url      string
	http     *http.Client
}

// New picks the real client or the disabled one based on configuration.
func New(apiKey, senderID, url string) Notifier {
	if apiKey == "" || senderID == "" {
		return Disabled{}
	}
	if url == "" {
		url = defaultAPIURL
	}
	return &ZenophClient{
		apiKey:   apiKey,
		senderID: senderID,
		url:      url,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ZenophClient) Send(ctx context.Context, phoneNumber, message string) error {
	payload := map[string]interface{}{
		"text":         message,
		"type":         0,
		"sender":       c.senderID,
		"destinations": []string{phoneNumber},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("sms: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Authorization", "key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms: gateway returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
