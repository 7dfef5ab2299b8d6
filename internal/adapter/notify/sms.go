package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// smsPayload is the JSON structure sent to the SMS gateway.
type smsPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SMSService implements ports.SMSService against an HTTP SMS gateway. One
// attempt per message: the OTP record stays valid either way, and the user
// can request a resend within the rate limit.
type SMSService struct {
	url        string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewSMSService creates a new SMS dispatcher.
func NewSMSService(url string, httpClient HTTPClient, log zerolog.Logger) *SMSService {
	return &SMSService{
		url:        url,
		httpClient: httpClient,
		log:        log,
	}
}

// Send dispatches the message. The returned flag only records that the
// gateway accepted the request.
func (s *SMSService) Send(ctx context.Context, phone, message string) bool {
	if s.url == "" {
		s.log.Debug().Msg("sms: no gateway configured, skipping")
		return false
	}

	payloadBytes, err := json.Marshal(smsPayload{Phone: phone, Message: message})
	if err != nil {
		s.log.Error().Err(err).Msg("sms: failed to marshal payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payloadBytes))
	if err != nil {
		s.log.Error().Err(err).Msg("sms: failed to create request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Msg("sms: dispatch failed")
		return false
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn().Int("status", resp.StatusCode).Msg("sms: gateway rejected message")
		return false
	}
	return true
}
