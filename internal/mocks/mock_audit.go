// Hand-written in the shape MockGen produces.
// Source: internal/port/audit/audit.go

package mocks

import (
	context "context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	eventbus "github.com/alanyang/eventmesh/internal/eventbus"
)

// MockSink is a mock of the audit.Sink interface.
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkMockRecorder
}

// MockSinkMockRecorder is the mock recorder for MockSink.
type MockSinkMockRecorder struct {
	mock *MockSink
}

// NewMockSink creates a new mock instance.
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	mock := &MockSink{ctrl: ctrl}
	mock.recorder = &MockSinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSink) EXPECT() *MockSinkMockRecorder {
	return m.recorder
}

// Record mocks base method.
func (m *MockSink) Record(ctx context.Context, evt eventbus.Type, safe any) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Record", ctx, evt, safe)
	ret0, _ := ret[0].(error)
	return ret0
}

// Record indicates an expected call of Record.
func (mr *MockSinkMockRecorder) Record(ctx, evt, safe any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Record", reflect.TypeOf((*MockSink)(nil).Record), ctx, evt, safe)
}
