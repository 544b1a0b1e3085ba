package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"template_shop_server/internal/orders"
	"template_shop_server/internal/payment"
)

// Gateway mocks payment.Gateway.
type Gateway struct {
	mock.Mock
}

func (m *Gateway) CreateSession(ctx context.Context, req payment.Request) (*payment.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.Result)
	return res, args.Error(1)
}

func (m *Gateway) Name() string {
	return "mock"
}

// ConfirmingGateway mocks a gateway that also implements payment.Confirmer.
type ConfirmingGateway struct {
	Gateway
}

func (m *ConfirmingGateway) ConfirmSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// Recorder mocks orders.Recorder.
type Recorder struct {
	mock.Mock
}

func (m *Recorder) Record(ctx context.Context, o orders.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}
