package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
)

// RoomRepositoryMock is a testify mock for repositories.RoomRepository.
type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, createdBy, name, description, kind string, memberIDs []string) (models.Room, error) {
	args := m.Called(ctx, createdBy, name, description, kind, memberIDs)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int64) (models.Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForMember(ctx context.Context, userID string) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	if rooms, ok := args.Get(0).([]models.Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepositoryMock) ListMembers(ctx context.Context, roomID int64) ([]models.Member, error) {
	args := m.Called(ctx, roomID)
	if members, ok := args.Get(0).([]models.Member); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID int64, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID int64, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID int64, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) DeactivateRoom(ctx context.Context, roomID int64) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

// MessageRepositoryMock is a testify mock for repositories.MessageRepository.
type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, roomID int64, senderID *string, body string, attachments []models.Attachment) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, body, attachments)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) ListSince(ctx context.Context, roomID, after, before int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, after, before, limit)
	if msgs, ok := args.Get(0).([]models.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, roomID int64, userID string, messageID int64) error {
	args := m.Called(ctx, roomID, userID, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) EditBody(ctx context.Context, roomID, messageID int64, senderID, body string) (models.Message, error) {
	args := m.Called(ctx, roomID, messageID, senderID, body)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) AddReaction(ctx context.Context, roomID, messageID int64, userID, emoji string) (models.Message, error) {
	args := m.Called(ctx, roomID, messageID, userID, emoji)
	return args.Get(0).(models.Message), args.Error(1)
}
