package ranking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveroute/pkg/domain"
)

func TestInMemory_Top(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()
	a, b, c := domain.NewRandomAddress(), domain.NewRandomAddress(), domain.NewRandomAddress()

	require.NoError(t, r.Record(ctx, a, 10))
	require.NoError(t, r.Record(ctx, b, 30))
	require.NoError(t, r.Record(ctx, c, 5))
	require.NoError(t, r.Record(ctx, a, 25))

	rows, err := r.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, a, rows[0].Destination)
	assert.Equal(t, uint64(35), rows[0].Received)
	assert.Equal(t, b, rows[1].Destination)

	all, err := r.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
