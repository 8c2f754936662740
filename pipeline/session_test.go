package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndGet(t *testing.T) {
	registry := NewRegistry()

	id := registry.Create()
	require.NotEmpty(t, id)

	snap, ok := registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, 0, snap.Saved)

	_, ok = registry.Get("no-such-session")
	assert.False(t, ok)
}

func TestRegistrySubscribeReplaysCurrentSnapshot(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create()

	registry.Update(id, func(snap *Snapshot) {
		snap.Status = StatusProcessing
		snap.Total = 50
	})

	updates, cancel, err := registry.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	select {
	case snap := <-updates:
		assert.Equal(t, StatusProcessing, snap.Status)
		assert.Equal(t, 50, snap.Total)
	case <-time.After(time.Second):
		t.Fatal("expected immediate replay of current snapshot")
	}
}

func TestRegistrySubscribeUnknownSession(t *testing.T) {
	registry := NewRegistry()
	_, _, err := registry.Subscribe("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryPublishesUpdates(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create()

	updates, cancel, err := registry.Subscribe(id)
	require.NoError(t, err)
	defer cancel()
	<-updates // replayed pending snapshot

	registry.Update(id, func(snap *Snapshot) { snap.Saved = 10 })
	registry.Update(id, func(snap *Snapshot) { snap.Saved = 20 })

	snap := <-updates
	assert.Equal(t, 10, snap.Saved)
	snap = <-updates
	assert.Equal(t, 20, snap.Saved)
}

func TestRegistryTerminalUpdateClosesSubscribers(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create()

	updates, cancel, err := registry.Subscribe(id)
	require.NoError(t, err)
	defer cancel()
	<-updates

	registry.Update(id, func(snap *Snapshot) { snap.Status = StatusComplete })

	snap, open := <-updates
	require.True(t, open)
	assert.Equal(t, StatusComplete, snap.Status)

	_, open = <-updates
	assert.False(t, open, "channel should be closed after the terminal snapshot")
}

func TestRegistrySubscribeToTerminalSession(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create()
	registry.Update(id, func(snap *Snapshot) { snap.Status = StatusError; snap.Error = "boom" })

	updates, cancel, err := registry.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	snap, open := <-updates
	require.True(t, open)
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "boom", snap.Error)

	_, open = <-updates
	assert.False(t, open)
}

func TestRegistrySlowSubscriberCoalesces(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create()

	updates, cancel, err := registry.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	// Never read while publishing far more snapshots than the buffer holds.
	for i := 1; i <= subscriberBuffer*4; i++ {
		saved := i
		registry.Update(id, func(snap *Snapshot) { snap.Saved = saved })
	}

	var last Snapshot
	for {
		select {
		case snap := <-updates:
			last = snap
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer*4, last.Saved, "latest snapshot must survive the drops")
}

func TestRegistryCancelAfterTerminalIsSafe(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create()

	_, cancel, err := registry.Subscribe(id)
	require.NoError(t, err)

	registry.Update(id, func(snap *Snapshot) { snap.Status = StatusComplete })
	cancel() // must not panic on the already-closed channel
}

func TestRegistrySweep(t *testing.T) {
	registry := NewRegistry()

	done := registry.Create()
	registry.Update(done, func(snap *Snapshot) { snap.Status = StatusComplete })
	running := registry.Create()
	registry.Update(running, func(snap *Snapshot) { snap.Status = StatusProcessing })

	// Nothing is old enough yet.
	assert.Equal(t, 0, registry.Sweep(time.Minute))

	time.Sleep(10 * time.Millisecond)
	removed := registry.Sweep(time.Nanosecond)
	assert.Equal(t, 1, removed)

	_, ok := registry.Get(done)
	assert.False(t, ok)
	_, ok = registry.Get(running)
	assert.True(t, ok, "in-flight sessions must never be swept")
	assert.Equal(t, 1, registry.Len())
}
