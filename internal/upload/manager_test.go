package upload_test

import (
	"sync"
	"testing"

	"github.com/attachdrop/backend/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := upload.NewTracker()

	id := tr.Start("a.png")
	entry, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, "a.png", entry.FileName)
	assert.Equal(t, 0.0, entry.Percent)

	pct, applied := tr.Update(id, 25, 100)
	assert.True(t, applied)
	assert.Equal(t, 25.0, pct)

	// unknown total is ignored
	_, applied = tr.Update(id, 50, 0)
	assert.False(t, applied)
	entry, _ = tr.Get(id)
	assert.Equal(t, 25.0, entry.Percent)

	// clamped
	pct, _ = tr.Update(id, 300, 100)
	assert.Equal(t, 100.0, pct)

	tr.Complete(id)
	_, ok = tr.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Len())

	_, applied = tr.Update(id, 1, 2)
	assert.False(t, applied)
}

func TestTracker_SnapshotOrderAndFail(t *testing.T) {
	tr := upload.NewTracker()
	first := tr.Start("first.txt")
	second := tr.Start("second.txt")

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	ids := []string{snap[0].ID, snap[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)

	tr.Fail(first)
	snap = tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, second, snap[0].ID)
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tr := upload.NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := tr.Start("same.txt")
			for j := int64(1); j <= 10; j++ {
				tr.Update(id, j, 10)
			}
			tr.Complete(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, tr.Len())
}

func TestBroker_FanOutAndCancel(t *testing.T) {
	b := upload.NewBroker(2)
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	b.Publish(upload.Event{Type: upload.EventStarted, FileName: "a"})
	assert.Equal(t, "a", (<-ch1).FileName)
	assert.Equal(t, "a", (<-ch2).FileName)

	cancel1()
	cancel1()
	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())

	// full buffers drop instead of blocking
	for i := 0; i < 5; i++ {
		b.Publish(upload.Event{Type: upload.EventProgress})
	}
	assert.Len(t, ch2, 2)
	cancel2()
}
