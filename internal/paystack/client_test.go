package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeTransaction(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))

		var req InitializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(2050), req.Amount)
		assert.Equal(t, "R1", req.Reference)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]interface{}{
				"authorization_url": "https://checkout.paystack.com/xyz",
				"access_code":       "xyz",
				"reference":         "R1",
			},
		})
	}))
	defer srv.Close()

	client := NewClient("sk_test_abc", srv.URL)
	data, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Amount:      2050,
		Email:       "buyer@knust.edu.gh",
		Reference:   "R1",
		CallbackURL: "http://localhost:3000/order-confirmation/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/xyz", data.AuthorizationURL)
}

func TestInitializeTransaction_ProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer srv.Close()

	client := NewClient("bad", srv.URL)
	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{Amount: 100})
	require.Error(t, err)

	var provider *ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, "Invalid key", provider.Message)
	assert.Contains(t, string(provider.Raw), "Invalid key")
}

func TestVerifyTransaction(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/R1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]interface{}{
				"status":    "success",
				"reference": "R1",
				"amount":    2000,
			},
		})
	}))
	defer srv.Close()

	client := NewClient("sk_test_abc", srv.URL)
	data, raw, err := client.VerifyTransaction(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "success", data.Status)
	assert.Equal(t, int64(2000), data.Amount)
	assert.Contains(t, string(raw), "Verification successful")
}
