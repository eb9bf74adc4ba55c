// SPDX-License-Identifier: MIT

package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiatePrompt(t *testing.T) {
	var got stkPushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mobile/request-payment", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(stkPushResponse{
			Data: &stkPushResponseData{ResponseCode: "0", CheckoutRequestID: "chk-1"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Paybill: "4953892"}, zerolog.Nop())
	err := c.InitiatePrompt(context.Background(), "0712345678", 5000, "CS-ABCD1234")
	require.NoError(t, err)

	assert.Equal(t, "254712345678", got.PhoneNo)
	assert.Equal(t, 5000.0, got.Amount)
	assert.Equal(t, "4953892", got.Paybill)
	assert.Equal(t, "CS-ABCD1234", got.PaymentReference)
}

func TestInitiatePromptRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(stkPushResponse{
			Data: &stkPushResponseData{ResponseCode: "1", ResponseDescription: "insufficient funds"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	err := c.InitiatePrompt(context.Background(), "254712345678", 100, "CS-X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestInitiatePromptNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(stkPushResponse{Error: "gateway offline"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	err := c.InitiatePrompt(context.Background(), "254712345678", 100, "CS-X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway offline")
}
