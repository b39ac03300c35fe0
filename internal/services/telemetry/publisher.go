package telemetry

import (
	"context"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
	"github.com/LeonardoBeccarini/farmsim/pkg/rabbitmq"
)

// StatsPublisher pushes every snapshot to the broker as JSON.
type StatsPublisher struct {
	pub rabbitmq.IPublisher
}

var _ simulation.Sink = (*StatsPublisher)(nil)

func NewStatsPublisher(pub rabbitmq.IPublisher) *StatsPublisher {
	return &StatsPublisher{pub: pub}
}

func (p *StatsPublisher) Consume(_ context.Context, snap messages.Snapshot) error {
	return p.pub.PublishMessage(snap)
}
