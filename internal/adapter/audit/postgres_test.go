package audit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/eventmesh/internal/adapter/audit"
	"github.com/alanyang/eventmesh/internal/eventbus"
	"github.com/alanyang/eventmesh/internal/mocks"
)

func TestSubscribe_DrivesSinkOnMatchingPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	var mu sync.Mutex
	done := make(chan struct{})
	evtType := eventbus.NewType(1, 1)

	sink.EXPECT().
		Record(gomock.Any(), evtType, "payload").
		DoAndReturn(func(_ any, _ eventbus.Type, _ any) error {
			mu.Lock()
			defer mu.Unlock()
			close(done)
			return nil
		})

	bus := eventbus.NewBus()
	_, err := audit.Subscribe(bus, nil, evtType, sink)
	require.NoError(t, err)

	require.True(t, bus.Publish(nil, evtType, "payload"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink was never driven by the bus worker")
	}
}

func TestSubscribe_SinkErrorDoesNotFailPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	done := make(chan struct{})
	evtType := eventbus.NewType(2, 1)

	sink.EXPECT().
		Record(gomock.Any(), evtType, gomock.Any()).
		DoAndReturn(func(_ any, _ eventbus.Type, _ any) error {
			close(done)
			return assertAnError
		})

	bus := eventbus.NewBus()
	_, err := audit.Subscribe(bus, nil, evtType, sink)
	require.NoError(t, err)

	require.True(t, bus.Publish(nil, evtType, nil))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink was never driven by the bus worker")
	}
}

var assertAnError = errFake{}

type errFake struct{}

func (errFake) Error() string { return "fake sink error" }
