package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://api.paystack.co"

// ProviderError means paystack answered but reported status=false or an
// unsuccessful charge. Raw carries the provider body through untouched so the
// front-end can render paystack's own message.
type ProviderError struct {
	Message string
	Raw     json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("paystack: %s", e.Message)
}

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type InitializeRequest struct {
	Amount      int64  `json:"amount"`
	Email       string `json:"email"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeData, error) {
	body, raw, err := c.do(ctx, http.MethodPost, "/transaction/initialize", req)
	if err != nil {
		return nil, err
	}

	var data InitializeData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, &ProviderError{Message: "malformed initialize response", Raw: raw}
	}
	return &data, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, json.RawMessage, error) {
	body, raw, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, nil, err
	}

	var data VerifyData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, nil, &ProviderError{Message: "malformed verify response", Raw: raw}
	}
	return &data, raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*apiResponse, json.RawMessage, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, nil, fmt.Errorf("paystack: encode payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: read response: %w", err)
	}

	var body apiResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, &ProviderError{Message: "malformed response", Raw: raw}
	}
	if !body.Status {
		return nil, nil, &ProviderError{Message: body.Message, Raw: raw}
	}
	return &body, raw, nil
}
