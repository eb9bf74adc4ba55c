// SPDX-License-Identifier: MIT

// Package sms sends templated notifications through the Celcom Africa bulk
// SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sarafrika/camp-ussd/internal/log"
	"github.com/sarafrika/camp-ussd/internal/metrics"
)

// ErrInvalidPhone means the number could not be normalized to the 254 format
// the provider accepts.
var ErrInvalidPhone = errors.New("sms: invalid phone number")

var normalizedPattern = regexp.MustCompile(`^254[17][0-9]{8}$`)

// Config carries the provider credentials and the outbound rate cap.
type Config struct {
	BaseURL       string
	APIKey        string
	PartnerID     string
	Shortcode     string
	RatePerSecond float64
}

// Client is the Celcom Africa gateway client. Send is rate limited so a burst
// of registrations cannot trip the provider's throttling.
type Client struct {
	conf    Config
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient builds a client. A zero rate defaults to 5 messages per second.
func NewClient(conf Config, logger zerolog.Logger) *Client {
	if conf.RatePerSecond <= 0 {
		conf.RatePerSecond = 5
	}
	return &Client{
		conf:    conf,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(conf.RatePerSecond), int(conf.RatePerSecond)),
		logger:  logger,
	}
}

type sendRequest struct {
	PartnerID string `json:"partnerID"`
	APIKey    string `json:"apikey"`
	Mobile    string `json:"mobile"`
	Message   string `json:"message"`
	Shortcode string `json:"shortcode"`
}

type sendResponse struct {
	ResponseCode        int    `json:"response-code"`
	ResponseDescription string `json:"response-description"`
	Mobile              string `json:"mobile"`
	MessageID           string `json:"messageid"`
	NetworkID           string `json:"networkid"`
}

// Send delivers one message. The phone number is normalized first; numbers
// that cannot be normalized fail without a network call.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		metrics.IncSMSSend("failed")
		c.logger.Error().
			Str(log.FieldPhone, MaskPhone(phone)).
			Msg("sms rejected: unnormalizable phone number")
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.IncSMSSend("failed")
		return fmt.Errorf("sms: rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendRequest{
		PartnerID: c.conf.PartnerID,
		APIKey:    c.conf.APIKey,
		Mobile:    normalized,
		Message:   message,
		Shortcode: c.conf.Shortcode,
	})
	if err != nil {
		metrics.IncSMSSend("failed")
		return fmt.Errorf("sms: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.BaseURL+"/api/services/sendsms", bytes.NewReader(body))
	if err != nil {
		metrics.IncSMSSend("failed")
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncSMSSend("failed")
		return fmt.Errorf("sms: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.IncSMSSend("failed")
		return fmt.Errorf("sms: decode response: %w", err)
	}
	if out.ResponseCode != 200 {
		metrics.IncSMSSend("failed")
		c.logger.Error().
			Str(log.FieldPhone, MaskPhone(normalized)).
			Int("response_code", out.ResponseCode).
			Str("description", out.ResponseDescription).
			Msg("sms send rejected by provider")
		return fmt.Errorf("sms: provider rejected with code %d: %s", out.ResponseCode, out.ResponseDescription)
	}

	metrics.IncSMSSend("sent")
	c.logger.Info().
		Str(log.FieldPhone, MaskPhone(normalized)).
		Str("message_id", out.MessageID).
		Msg("sms sent")
	return nil
}

// SendRegistrationConfirmation notifies the participant that their
// registration went through.
func (c *Client) SendRegistrationConfirmation(ctx context.Context, phone, participantName, campName, reference string) error {
	msg := fmt.Sprintf(
		"Registration confirmed for %s at %s. Reference: %s. Payment instructions will follow. Camp Sarafrika.",
		participantName, campName, reference)
	return c.Send(ctx, phone, msg)
}

// SendGuardianNotification tells the guardian their child was registered.
func (c *Client) SendGuardianNotification(ctx context.Context, phone, participantName, campName, reference string) error {
	msg := fmt.Sprintf(
		"Your child %s has been registered for %s. Reference: %s. Payment details will be sent shortly. Camp Sarafrika.",
		participantName, campName, reference)
	return c.Send(ctx, phone, msg)
}

// SendPaymentConfirmation acknowledges a settled payment.
func (c *Client) SendPaymentConfirmation(ctx context.Context, phone, participantName, reference string, amount float64, organizerContact string) error {
	msg := fmt.Sprintf(
		"Hi %s,\nYour payment is confirmed.\nRef: %s. Fee paid: KShs %.0f.\nOrganizer Contact: %s",
		participantName, reference, amount, organizerContact)
	return c.Send(ctx, phone, msg)
}

// NormalizePhone converts a Kenyan number to the 254XXXXXXXXX form. Leading
// zero becomes 254, a plus sign is stripped, whitespace is removed.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Join(strings.Fields(phone), "")
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "254" + cleaned[1:]
	} else if strings.HasPrefix(cleaned, "+") {
		cleaned = cleaned[1:]
	}
	if !normalizedPattern.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}
	return cleaned, nil
}

// MaskPhone hides the middle digits for logging.
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return "***"
	}
	return phone[:4] + "***" + phone[len(phone)-3:]
}
