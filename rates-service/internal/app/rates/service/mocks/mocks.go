package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockFlagsService мок для FlagsServiceInterface
type MockFlagsService struct {
	mock.Mock
}

func (m *MockFlagsService) FlagURL(ctx context.Context, currencyID string) (string, error) {
	args := m.Called(ctx, currencyID)
	return args.String(0), args.Error(1)
}
