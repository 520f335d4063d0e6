package messaging

import (
	"context"

	"github.com/intakehub/intake-go/internal/rabbitmq"
)

// connectionProvider adapts rabbitmq.ConnectionManager to ChannelProvider.
type connectionProvider struct {
	cm *rabbitmq.ConnectionManager
}

// NewConnectionProvider wraps a connection manager so dispatchers and
// consumers can draw channels from it.
func NewConnectionProvider(cm *rabbitmq.ConnectionManager) ChannelProvider {
	return &connectionProvider{cm: cm}
}

func (p *connectionProvider) Channel(ctx context.Context) (Channel, error) {
	return p.cm.Channel(ctx)
}

func (p *connectionProvider) CreateChannel(ctx context.Context) (Channel, error) {
	return p.cm.CreateChannel(ctx)
}
