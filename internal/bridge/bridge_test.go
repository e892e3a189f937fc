package bridge

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

type memoryStore struct {
	mu    sync.Mutex
	rooms map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rooms: make(map[string]int64)}
}

func (s *memoryStore) RoomForSession(_ context.Context, sessionID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, ok := s.rooms[sessionID]
	return roomID, ok, nil
}

func (s *memoryStore) AttachRoom(_ context.Context, sessionID string, roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[sessionID]; !ok {
		s.rooms[sessionID] = roomID
	}
	return nil
}

func TestEnsureRoomCreatesOnFirstUse(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	store := newMemoryStore()
	b := New(rooms, store, zerolog.Nop())

	rooms.On("CreateRoom", mock.Anything, "alice", "session s-1", "", models.RoomKindDirect, []string{"alice", "bob"}).
		Return(models.Room{ID: 9}, nil).Once()

	roomID, err := b.EnsureRoom(context.Background(), "s-1", []string{"alice", "bob"}, "live")
	require.NoError(t, err)
	assert.Equal(t, int64(9), roomID)
	rooms.AssertExpectations(t)
}

func TestEnsureRoomIsIdempotent(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	store := newMemoryStore()
	b := New(rooms, store, zerolog.Nop())

	rooms.On("CreateRoom", mock.Anything, "alice", "session s-1", "", models.RoomKindPrivate, []string{"alice", "bob", "carol"}).
		Return(models.Room{ID: 4}, nil).Once()

	first, err := b.EnsureRoom(context.Background(), "s-1", []string{"alice", "bob", "carol"}, "")
	require.NoError(t, err)

	second, err := b.EnsureRoom(context.Background(), "s-1", []string{"alice", "bob", "carol"}, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// CreateRoom was only expected once
	rooms.AssertExpectations(t)
}

func TestEnsureRoomLostRaceReusesExistingRoom(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	store := newMemoryStore()
	b := New(rooms, store, zerolog.Nop())

	// a concurrent caller attached the mapping between our lookup and insert
	rooms.On("CreateRoom", mock.Anything, "alice", "session s-1", "", models.RoomKindPrivate, []string{"alice"}).
		Run(func(mock.Arguments) {
			require.NoError(t, store.AttachRoom(context.Background(), "s-1", 77))
		}).
		Return(models.Room{ID: 78}, nil).Once()

	roomID, err := b.EnsureRoom(context.Background(), "s-1", []string{"alice"}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(77), roomID)
}

func TestEnsureRoomValidation(t *testing.T) {
	b := New(new(mocks.RoomRepositoryMock), newMemoryStore(), zerolog.Nop())

	_, err := b.EnsureRoom(context.Background(), "", []string{"alice"}, "")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = b.EnsureRoom(context.Background(), "s-1", nil, "")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEnsureRoomDirectOnlyForTwoPartyLive(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	b := New(rooms, newMemoryStore(), zerolog.Nop())

	rooms.On("CreateRoom", mock.Anything, "a", "session s-2", "", models.RoomKindPrivate, []string{"a", "b", "c"}).
		Return(models.Room{ID: 5}, nil).Once()

	_, err := b.EnsureRoom(context.Background(), "s-2", []string{"a", "b", "c"}, "live")
	require.NoError(t, err)
	rooms.AssertExpectations(t)
}
