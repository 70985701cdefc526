// Package channel abstracts the chat transports the assistant speaks
// over. A channel delivers normalized inbound messages and accepts
// outbound replies; media arrives pre-normalized as a MediaReference so
// the orchestrator never handles raw platform payloads.
package channel

import (
	"context"

	"github.com/famulus-ai/famulus/internal/models"
)

// Channel is one chat transport.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Incoming() <-chan *models.InboundMessage
	Send(ctx context.Context, msg *models.OutboundMessage) error
}
