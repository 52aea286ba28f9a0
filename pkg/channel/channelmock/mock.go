package channelmock

import (
	"context"

	"github.com/solarbot/solarbot/pkg/channel"
	"github.com/stretchr/testify/mock"
)

type MockChannel struct {
	mock.Mock
}

var _ channel.Channel = (*MockChannel)(nil)

func (m *MockChannel) Create(ctx context.Context, content string) (string, error) {
	args := m.Called(ctx, content)
	return args.String(0), args.Error(1)
}

func (m *MockChannel) Edit(ctx context.Context, id, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockChannel) Get(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockChannel) Send(ctx context.Context, content string) error {
	args := m.Called(ctx, content)
	return args.Error(0)
}

func (m *MockChannel) Ref() string {
	return "mock"
}
