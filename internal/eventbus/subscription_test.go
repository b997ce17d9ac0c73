package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_PrivateFreeRunsExactlyOnceAtZeroRefcount(t *testing.T) {
	list := newSubList(0)
	var frees int
	s := newSubscription(list, NewType(1, 1), Sync(func(SubHandle, Type, any) {}, "data", func(any) {
		frees++
	}), 1, 0) // +1 extra ref, as SubscribePtr would pass
	require.NoError(t, list.insert(s))

	// refcount is 1 (sublist) + 1 (extra external holder) = 2.
	assert.Equal(t, int64(2), s.refcount.Load())

	s.Unsubscribe() // drops the sublist's unit
	assert.Equal(t, 0, frees, "private data must not be freed while the external holder is still outstanding")

	s.release() // the external holder drops its unit
	assert.Equal(t, 1, frees)
	assert.Equal(t, int64(0), s.refcount.Load())
}

func TestSubscription_EnqueueForPublish_RejectsAfterUnsubscribe(t *testing.T) {
	list := newSubList(0)
	queue := NewAsyncQueue(0)
	s := newSubscription(list, NewType(1, 1), AsyncTask(queue, chanWakeStub{}, nil, nil), 0, 0)
	require.NoError(t, list.insert(s))

	s.Unsubscribe()
	assert.False(t, s.enqueueForPublish(NewType(1, 1), "late"),
		"an enqueue racing an unsubscribe must see the post-unsubscribe state and fail harmlessly")
}

func TestSubscription_ResubscribeIsLockFreeUnderConcurrentFilterReads(t *testing.T) {
	list := newSubList(0)
	s := newSubscription(list, NewType(1, 1), Sync(func(SubHandle, Type, any) {}, nil, nil), 0, 0)
	require.NoError(t, list.insert(s))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = s.GetFilter()
		}
	}()

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Resubscribe(NewType(1, Subtype(1<<uint(i%15)))))
	}
	<-done
}

func TestUnsubscribe_WakesIdleAsyncFnWorkerToExit(t *testing.T) {
	list := newSubList(0)
	s := newSubscription(list, NewType(1, 1), AsyncFnHandler(func(SubHandle, Type, any) {}, nil, nil), 0, 0)
	require.NoError(t, list.insert(s))

	s.Unsubscribe()

	select {
	case <-s.workSignal:
	default:
		t.Fatal("Unsubscribe must signal a KindAsyncFn subscription's worker so one parked idle on workSignal observes workerShouldExit and returns, instead of leaking forever")
	}
	assert.True(t, s.workerShouldExit())
}

type chanWakeStub struct{}

func (chanWakeStub) Wake() {}
