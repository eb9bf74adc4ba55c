// SPDX-License-Identifier: MIT

// Package payment initiates M-Pesa STK push prompts through the Cheddar
// payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarafrika/camp-ussd/internal/log"
	"github.com/sarafrika/camp-ussd/internal/metrics"
)

// Config carries the gateway endpoint and the paybill payments settle to.
type Config struct {
	BaseURL string
	Paybill string
}

// Client talks to the Cheddar mobile payments API.
type Client struct {
	conf   Config
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(conf Config, logger zerolog.Logger) *Client {
	if conf.Paybill == "" {
		conf.Paybill = "4953892"
	}
	return &Client{
		conf:   conf,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type stkPushRequest struct {
	PhoneNo          string  `json:"phoneNo"`
	Amount           float64 `json:"amount"`
	Paybill          string  `json:"paybill"`
	PaymentReference string  `json:"paymentReference"`
}

type stkPushResponse struct {
	Data    *stkPushResponseData `json:"data"`
	Message string               `json:"message"`
	Error   string               `json:"error"`
}

type stkPushResponseData struct {
	MerchantRequestID   string `json:"merchantRequestId"`
	CheckoutRequestID   string `json:"checkoutRequestId"`
	ResponseCode        string `json:"responseCode"`
	ResponseDescription string `json:"responseDescription"`
	CustomerMessage     string `json:"customerMessage"`
}

// InitiatePrompt asks the gateway to push a payment prompt to the caller's
// handset. The reference code ties the eventual confirmation callback back to
// the order.
func (c *Client) InitiatePrompt(ctx context.Context, phone string, amount float64, reference string) error {
	body, err := json.Marshal(stkPushRequest{
		PhoneNo:          normalizePhone(phone),
		Amount:           amount,
		Paybill:          c.conf.Paybill,
		PaymentReference: reference,
	})
	if err != nil {
		metrics.IncSTKPush("failed")
		return fmt.Errorf("payment: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.BaseURL+"/mobile/request-payment", bytes.NewReader(body))
	if err != nil {
		metrics.IncSTKPush("failed")
		return fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncSTKPush("failed")
		return fmt.Errorf("payment: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.IncSTKPush("failed")
		return fmt.Errorf("payment: decode response: %w", err)
	}

	if out.Data == nil || out.Data.ResponseCode != "0" {
		metrics.IncSTKPush("failed")
		detail := out.Error
		if out.Data != nil {
			detail = out.Data.ResponseDescription
		}
		if detail == "" {
			detail = "no response from payment gateway"
		}
		c.logger.Error().
			Str(log.FieldReference, reference).
			Str("detail", detail).
			Msg("stk push rejected")
		return fmt.Errorf("payment: stk push rejected: %s", detail)
	}

	metrics.IncSTKPush("ok")
	c.logger.Info().
		Str(log.FieldReference, reference).
		Str("checkout_request_id", out.Data.CheckoutRequestID).
		Msg("stk push initiated")
	return nil
}

// normalizePhone is lenient: it fixes the common prefixes and passes anything
// else through for the gateway to judge.
func normalizePhone(phone string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(phone), "+", "")
	if strings.HasPrefix(cleaned, "0") {
		return "254" + cleaned[1:]
	}
	return cleaned
}
