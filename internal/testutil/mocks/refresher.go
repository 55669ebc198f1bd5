package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type Refresher struct {
	mock.Mock
}

func (m *Refresher) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
