package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/soulforge-labs/soulgate/ports"
)

const (
	// LoginTopic carries session creation events.
	LoginTopic = "soulgate.auth.login"

	// LogoutTopic carries session revocation events.
	LogoutTopic = "soulgate.auth.logout"
)

// AuthEvent is the payload published on session lifecycle changes.
type AuthEvent struct {
	Address   string `json:"address"`
	SessionID string `json:"session_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) PublishLogin(ctx context.Context, address, sessionID string) error {
	return p.publish(LoginTopic, address, sessionID)
}

func (p *WatermillPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	return p.publish(LogoutTopic, address, sessionID)
}

func (p *WatermillPublisher) publish(topic, address, sessionID string) error {
	payload, err := json.Marshal(AuthEvent{
		Address:   address,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(sessionID, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
