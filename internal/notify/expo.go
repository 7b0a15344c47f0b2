package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/prudhvinik1/slotsync/internal/models"
)

const expoBatchLimit = 100

// ExpoProvider delivers push notifications through the Expo push service.
type ExpoProvider struct {
	client *expo.PushClient
}

// NewExpoProvider builds a provider against host (empty for the public Expo endpoint).
func NewExpoProvider(host, accessToken string) *ExpoProvider {
	return &ExpoProvider{
		client: expo.NewPushClient(&expo.ClientConfig{
			Host:        host,
			AccessToken: accessToken,
			HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		}),
	}
}

func (p *ExpoProvider) ValidToken(token string) bool {
	_, err := expo.NewExponentPushToken(token)
	return err == nil
}

func (p *ExpoProvider) BatchLimit() int {
	return expoBatchLimit
}

// Send publishes the batch. The Expo client has no context support; the HTTP client timeout
// bounds each call instead.
func (p *ExpoProvider) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	batch := make([]expo.PushMessage, len(messages))
	for i, m := range messages {
		batch[i] = expo.PushMessage{
			To:       []expo.ExponentPushToken{expo.ExponentPushToken(m.To)},
			Title:    m.Title,
			Body:     m.Body,
			Data:     m.Data,
			Sound:    "default",
			Priority: expoPriority(m.Priority),
		}
	}

	responses, err := p.client.PublishMultiple(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to publish push batch: %w", err)
	}
	if len(responses) != len(messages) {
		return nil, fmt.Errorf("push provider returned %d tickets for %d messages", len(responses), len(messages))
	}

	tickets := make([]PushTicket, len(messages))
	for i := range responses {
		tickets[i] = PushTicket{Token: messages[i].To, OK: true}
		if verr := responses[i].ValidateResponse(); verr != nil {
			var notRegistered *expo.DeviceNotRegisteredError
			tickets[i].OK = false
			tickets[i].TokenInvalid = errors.As(verr, &notRegistered)
			tickets[i].Err = verr
		}
	}
	return tickets, nil
}

func expoPriority(p models.NotificationPriority) string {
	if p == models.PriorityHigh {
		return expo.HighPriority
	}
	return expo.DefaultPriority
}
