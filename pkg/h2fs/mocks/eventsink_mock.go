// Package mocks holds generated-style gomock doubles for h2fs's
// external collaborator interfaces. Hand-maintained in the shape
// mockgen would produce (mockgen isn't run as part of this build).
package mocks

import (
	reflect "reflect"

	h2fs "github.com/qpoint-io/h2pdfinspect/pkg/h2fs"
	gomock "go.uber.org/mock/gomock"
)

// MockEventSink is a mock of the h2fs.EventSink interface.
type MockEventSink struct {
	ctrl     *gomock.Controller
	recorder *MockEventSinkMockRecorder
}

// MockEventSinkMockRecorder is the mock recorder for MockEventSink.
type MockEventSinkMockRecorder struct {
	mock *MockEventSink
}

// NewMockEventSink creates a new mock instance.
func NewMockEventSink(ctrl *gomock.Controller) *MockEventSink {
	mock := &MockEventSink{ctrl: ctrl}
	mock.recorder = &MockEventSinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEventSink) EXPECT() *MockEventSinkMockRecorder {
	return m.recorder
}

// RecordEvent mocks base method.
func (m *MockEventSink) RecordEvent(id h2fs.EventID) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "RecordEvent", id)
}

// RecordEvent indicates an expected call of RecordEvent.
func (mr *MockEventSinkMockRecorder) RecordEvent(id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RecordEvent", reflect.TypeOf((*MockEventSink)(nil).RecordEvent), id)
}

// AccumulateInfraction mocks base method.
func (m *MockEventSink) AccumulateInfraction(id h2fs.InfractionID) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "AccumulateInfraction", id)
}

// AccumulateInfraction indicates an expected call of AccumulateInfraction.
func (mr *MockEventSinkMockRecorder) AccumulateInfraction(id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AccumulateInfraction", reflect.TypeOf((*MockEventSink)(nil).AccumulateInfraction), id)
}
