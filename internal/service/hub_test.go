package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alignbox_chat/internal/errs"
	"alignbox_chat/internal/models"
)

func startTestHub(t *testing.T, opts HubOptions) *Hub {
	t.Helper()
	hub := NewHub(NewRegistry(), opts, nil)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

// connectFake 登記一個沒有底層連線的觀看者，直接讀取其發送佇列
func connectFake(t *testing.T, hub *Hub) *Viewer {
	t.Helper()
	v := newViewer(nil, hub, "test", hub.sendQueue)
	require.NoError(t, hub.register(v))
	return v
}

func receiveEvent(t *testing.T, v *Viewer) models.Event {
	t.Helper()
	select {
	case payload, ok := <-v.send:
		require.True(t, ok, "send queue closed")
		var ev models.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func expectNoEvent(t *testing.T, v *Viewer) {
	t.Helper()
	select {
	case payload, ok := <-v.send:
		if ok {
			t.Fatalf("unexpected event: %s", payload)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistryAddRemoveSnapshot(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	a := &Viewer{ID: "a"}
	b := &Viewer{ID: "b"}

	req.Equal(1, reg.Add(a))
	req.Equal(2, reg.Add(b))
	req.Len(reg.Snapshot(), 2)

	removed, remaining, ok := reg.Remove("a")
	req.True(ok)
	req.Same(a, removed)
	req.Equal(1, remaining)

	_, _, ok = reg.Remove("a")
	req.False(ok)
	req.Equal(1, reg.Len())
}

func TestViewerStateTransitions(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil, HubOptions{SendQueue: 1}, nil)
	v := newViewer(nil, hub, "test", 1)

	req.Equal(ViewerConnecting, v.State())
	req.True(v.markConnected())
	req.False(v.markConnected())
	req.Equal(ViewerConnected, v.State())

	req.True(v.disconnect())
	req.False(v.disconnect())
	req.Equal(ViewerDisconnected, v.State())
	req.Equal("disconnected", v.State().String())

	// 終止狀態無法回到連線
	req.False(v.markConnected())
	req.ErrorIs(v.enqueue([]byte("x")), errs.ErrDeliveryFailure)
}

func TestBroadcastReachesAllViewersInOrder(t *testing.T) {
	hub := startTestHub(t, HubOptions{SendQueue: 8})
	viewers := []*Viewer{connectFake(t, hub), connectFake(t, hub), connectFake(t, hub)}

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, hub.Broadcast(context.Background(), models.Message{ID: i, Message: "m"}, ""))
	}

	for _, v := range viewers {
		for i := uint64(1); i <= 3; i++ {
			ev := receiveEvent(t, v)
			require.Equal(t, models.EventNewMessage, ev.Type)
			require.Equal(t, i, ev.Message.ID)
		}
	}
}

func TestBroadcastExcludesOrigin(t *testing.T) {
	hub := startTestHub(t, HubOptions{SendQueue: 4})
	sender := connectFake(t, hub)
	other := connectFake(t, hub)

	require.NoError(t, hub.Broadcast(context.Background(), models.Message{ID: 1}, sender.ID))

	require.Equal(t, uint64(1), receiveEvent(t, other).Message.ID)
	expectNoEvent(t, sender)
}

func TestLateViewerDoesNotReceivePastMessages(t *testing.T) {
	hub := startTestHub(t, HubOptions{SendQueue: 4})
	early := connectFake(t, hub)

	require.NoError(t, hub.Broadcast(context.Background(), models.Message{ID: 1}, ""))
	require.Equal(t, uint64(1), receiveEvent(t, early).Message.ID)

	late := connectFake(t, hub)
	expectNoEvent(t, late)

	require.NoError(t, hub.Broadcast(context.Background(), models.Message{ID: 2}, ""))
	require.Equal(t, uint64(2), receiveEvent(t, late).Message.ID)
	require.Equal(t, uint64(2), receiveEvent(t, early).Message.ID)
}

func TestSlowViewerIsDroppedWithoutBlockingOthers(t *testing.T) {
	req := require.New(t)
	hub := startTestHub(t, HubOptions{SendQueue: 1})
	slow := connectFake(t, hub)
	fast := connectFake(t, hub)

	req.NoError(hub.Broadcast(context.Background(), models.Message{ID: 1}, ""))
	req.Equal(uint64(1), receiveEvent(t, fast).Message.ID)

	// slow 的佇列仍有第一則，第二則投遞失敗
	req.NoError(hub.Broadcast(context.Background(), models.Message{ID: 2}, ""))
	req.Equal(uint64(2), receiveEvent(t, fast).Message.ID)

	req.Eventually(func() bool {
		return slow.State() == ViewerDisconnected
	}, time.Second, 5*time.Millisecond)
	req.Equal(1, hub.ViewerCount())
}

func TestBroadcastAfterShutdown(t *testing.T) {
	req := require.New(t)
	hub := NewHub(NewRegistry(), HubOptions{}, nil)
	go hub.Run()
	v := connectFake(t, hub)

	req.NoError(hub.Shutdown(time.Second))
	req.Equal(ViewerDisconnected, v.State())
	req.Equal(0, hub.ViewerCount())

	err := hub.Broadcast(context.Background(), models.Message{ID: 1}, "")
	req.ErrorIs(err, errs.ErrHubClosed)

	_, err = hub.Attach(nil, "late")
	req.ErrorIs(err, errs.ErrHubClosed)
}

func TestBroadcastHonoursCallerContext(t *testing.T) {
	// 未啟動 Run 且沒有緩衝時，排入會等待到 context 結束
	hub := NewHub(NewRegistry(), HubOptions{EventBuffer: 0}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := hub.Broadcast(ctx, models.Message{ID: 1}, "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, hub.Shutdown(time.Second))
}

func TestShutdownWaitsForPumpsRegisteredConcurrently(t *testing.T) {
	hub := NewHub(NewRegistry(), HubOptions{SendQueue: 1}, nil)
	go hub.Run()

	var running atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := newViewer(nil, hub, "test", 1)
			pump := func() {
				running.Add(1)
				defer running.Add(-1)
				// 佇列關閉前持續等待
				for range v.send {
				}
			}
			if err := hub.register(v, pump); err != nil {
				assert.ErrorIs(t, err, errs.ErrHubClosed)
			}
		}()
	}

	require.NoError(t, hub.Shutdown(time.Second))
	// Shutdown 返回後所有已啟動的 pump 都已結束
	require.Zero(t, running.Load())
	wg.Wait()
	require.Zero(t, running.Load())
	require.Zero(t, hub.ViewerCount())
}
