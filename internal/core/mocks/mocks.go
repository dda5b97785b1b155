package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// MockMessageStore is a mock implementation of ports.MessageStore
type MockMessageStore struct {
	mock.Mock
}

func NewMockMessageStore() *MockMessageStore {
	return &MockMessageStore{}
}

func (m *MockMessageStore) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageStore) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockPresenceStore is a mock implementation of ports.PresenceStore
type MockPresenceStore struct {
	mock.Mock
}

func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{}
}

func (m *MockPresenceStore) Add(ctx context.Context, roomID string, participantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, roomID, participantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPresenceStore) Remove(ctx context.Context, roomID string, participantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, roomID, participantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPresenceStore) Online(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockEntitlementChecker is a mock implementation of ports.EntitlementChecker
type MockEntitlementChecker struct {
	mock.Mock
}

func NewMockEntitlementChecker() *MockEntitlementChecker {
	return &MockEntitlementChecker{}
}

func (m *MockEntitlementChecker) CanJoin(ctx context.Context, roomID string, participant domain.Participant) (bool, error) {
	args := m.Called(ctx, roomID, participant)
	return args.Bool(0), args.Error(1)
}

// MockFirehose is a mock implementation of ports.Firehose
type MockFirehose struct {
	mock.Mock
}

func NewMockFirehose() *MockFirehose {
	return &MockFirehose{}
}

func (m *MockFirehose) Publish(ctx context.Context, msg domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockFirehose) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
