package archive_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/service/archive"
	"agenda-eventos/internal/service/cascade"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("7d3c1a52-9f0e-4c8e-8b57-3a3f1f3e2b11")
	at := time.Date(2026, 4, 2, 15, 4, 5, 0, time.FixedZone("CLT", -3*3600))

	key := archive.ObjectKey(cascade.Snapshot{Event: domain.Event{ID: id}, DeletedAt: at})

	assert.Equal(t, "events/7d3c1a52-9f0e-4c8e-8b57-3a3f1f3e2b11/20260402T180405Z.json", key)
}
