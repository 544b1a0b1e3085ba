package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ Gateway = (*SimulatedGateway)(nil)

// SimulatedGateway stands in for a real provider: it waits a fixed delay
// and then reports the payment as completed.
type SimulatedGateway struct {
	delay  time.Duration
	logger *zap.Logger
}

func NewSimulatedGateway(delay time.Duration, logger *zap.Logger) *SimulatedGateway {
	return &SimulatedGateway{delay: delay, logger: logger.Named("SimulatedGateway")}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) CreateSession(ctx context.Context, req Request) (*Result, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	ref := "sim_" + uuid.NewString()
	g.logger.Info("Simulated payment completed",
		zap.String("order_id", req.OrderID),
		zap.String("reference", ref),
		zap.Int("lines", len(req.Items)),
	)
	return &Result{Completed: true, Reference: ref}, nil
}
