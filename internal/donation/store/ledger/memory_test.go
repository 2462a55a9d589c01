package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveroute/internal/donation/models"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.NextDonationID)

	next, _ := got.Record(40)
	require.NoError(t, store.Save(ctx, next))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{TotalDonations: 1, TotalRouted: 40, NextDonationID: 2}, got)
}
