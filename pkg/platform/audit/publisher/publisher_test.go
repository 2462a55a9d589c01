package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveroute/pkg/domain"
	audit "giveroute/pkg/platform/audit"
	"giveroute/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	destination := domain.NewRandomAddress()
	err := pub.Emit(context.Background(), audit.Event{
		Destination: destination,
		Action:      string(audit.EventRegistered),
		Name:        "Red Cross",
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), destination)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRegistered), events[0].Action)
	assert.Equal(t, audit.CategoryRegistry, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	destination := domain.NewRandomAddress()
	for i := range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Destination: destination,
			Action:      string(audit.EventDonationRouted),
			DonationID:  uint64(i + 1),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByDestination(context.Background(), destination)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
	assert.Equal(t, audit.CategoryDonation, events[0].Category)
}

func TestPublisher_BufferFull_DoesNotBlock(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventRegistered)}))
		}()
	}
	wg.Wait()
}

func TestPublisher_EmitAfterCloseFallsBackToSync(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()

	destination := domain.NewRandomAddress()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Destination: destination, Action: string(audit.EventRemoved)}))

	events, err := store.ListByDestination(context.Background(), destination)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_Timestamps(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	t.Run("sets missing timestamp", func(t *testing.T) {
		store.Clear()
		destination := domain.NewRandomAddress()
		before := time.Now()
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Destination: destination, Action: string(audit.EventRegistered)}))
		after := time.Now()

		events, err := pub.List(context.Background(), destination)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Timestamp.Before(before))
		assert.False(t, events[0].Timestamp.After(after))
	})

	t.Run("preserves existing timestamp", func(t *testing.T) {
		store.Clear()
		destination := domain.NewRandomAddress()
		fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Destination: destination, Action: string(audit.EventRegistered), Timestamp: fixed}))

		events, err := pub.List(context.Background(), destination)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, fixed, events[0].Timestamp)
	})
}
