package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveroute/internal/controller/models"
	"giveroute/pkg/domain"
	"giveroute/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	state := models.State{Current: domain.NewRandomAddress()}
	require.NoError(t, s.Save(ctx, state))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, got)
	assert.False(t, got.HasPending())
}
