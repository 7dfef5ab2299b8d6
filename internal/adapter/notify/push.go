// Package notify holds the outbound side channels: in-app push
// notifications and SMS. Both are fire-and-forget; delivery failure never
// rolls back protocol state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"qr-transfer-authorizer/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// pushRetryIntervals bounds the redelivery attempts for push notifications.
var pushRetryIntervals = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// pushPayload is the JSON structure sent to the notification endpoint.
type pushPayload struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	DeepLink    string `json:"deep_link,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// PushService implements ports.NotificationService against an HTTP
// notification endpoint.
type PushService struct {
	url        string
	httpClient HTTPClient
	log        zerolog.Logger
	// sleep is swapped out in tests to skip the retry waits.
	sleep func(time.Duration)
}

// NewPushService creates a new push notification dispatcher.
func NewPushService(url string, httpClient HTTPClient, log zerolog.Logger) *PushService {
	return &PushService{
		url:        url,
		httpClient: httpClient,
		log:        log,
		sleep:      time.Sleep,
	}
}

// Notify dispatches the notification asynchronously with bounded retries.
func (s *PushService) Notify(_ context.Context, recipientID uuid.UUID, n ports.Notification) {
	if s.url == "" {
		s.log.Debug().Msg("push: no endpoint configured, skipping")
		return
	}
	payload := pushPayload{
		RecipientID: recipientID.String(),
		Title:       n.Title,
		Message:     n.Message,
		Category:    n.Category,
		Priority:    n.Priority,
		DeepLink:    n.DeepLink,
		Timestamp:   time.Now().Unix(),
	}
	go s.deliverWithRetries(payload)
}

func (s *PushService) deliverWithRetries(payload pushPayload) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("push: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(pushRetryIntervals); attempt++ {
		if attempt > 0 {
			s.sleep(pushRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payloadBytes))
		if err != nil {
			s.log.Error().Err(err).Int("attempt", attempt+1).Msg("push: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("push: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Debug().Str("recipient", payload.RecipientID).Int("attempt", attempt+1).Msg("push: delivered")
			return
		}
		s.log.Warn().Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("push: non-2xx response, retrying")
	}

	s.log.Error().Str("recipient", payload.RecipientID).Msg("push: all retry attempts exhausted")
}
