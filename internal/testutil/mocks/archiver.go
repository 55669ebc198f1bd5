package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"agenda-eventos/internal/service/cascade"
)

type Archiver struct {
	mock.Mock
}

func (m *Archiver) ArchiveEvent(ctx context.Context, snap cascade.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}
