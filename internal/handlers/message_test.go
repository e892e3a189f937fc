package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/dispatcher"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/rooms/:room_id/messages", handler.PostMessage)
	r.GET("/rooms/:room_id/messages", handler.ListMessages)
	r.POST("/rooms/:room_id/messages/:message_id/read", handler.MarkRead)
	r.PUT("/rooms/:room_id/messages/:message_id", handler.EditMessage)
	r.POST("/rooms/:room_id/messages/:message_id/reactions", handler.AddReaction)
	return r
}

func newMessageHandler(rooms *mocks.RoomRepositoryMock, messages *mocks.MessageRepositoryMock) *MessageHandler {
	registry := ws.NewRegistry(zerolog.Nop())
	disp := dispatcher.New(rooms, messages, registry, zerolog.Nop())
	return NewMessageHandler(rooms, messages, disp, nil, zerolog.Nop())
}

func TestPostMessageSuccess(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	sender := "alice"
	stored := models.Message{ID: 11, RoomID: 5, SenderID: &sender, Body: "hi"}

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()
	messages.On("Append", mock.Anything, int64(5), &sender, "hi", ([]models.Attachment)(nil)).Return(stored, nil).Once()
	rooms.On("ListMembers", mock.Anything, int64(5)).Return([]models.Member{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(`{"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, int64(11), msg.ID)
	rooms.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestPostMessageForbiddenForNonMember(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(`{"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageMissingBody(t *testing.T) {
	handler := newMessageHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessagesPassesCursors(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()
	messages.On("ListSince", mock.Anything, int64(5), int64(10), int64(40), 25).
		Return([]models.Message{{ID: 12, RoomID: 5}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages?after=10&before=40&limit=25", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestListMessagesDefaultLimit(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()
	messages.On("ListSince", mock.Anything, int64(5), int64(0), int64(0), repositories.DefaultPageSize).
		Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestListMessagesInvalidCursor(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	handler := newMessageHandler(rooms, new(mocks.MessageRepositoryMock))
	router := setupMessageRouter(handler)

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages?after=xyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessagesForbiddenForNonMember(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "ListSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadSuccess(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()
	messages.On("MarkRead", mock.Anything, int64(5), "alice", int64(11)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages/11/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messages.AssertExpectations(t)
}

func TestEditMessageByNonSender(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	messages.On("EditBody", mock.Anything, int64(5), int64(11), "alice", "new text").
		Return(models.Message{}, apperrors.ErrAuthorization).Once()

	req := httptest.NewRequest(http.MethodPut, "/rooms/5/messages/11", bytes.NewBufferString(`{"body":"new text"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertExpectations(t)
}

func TestEditMessageSuccessNotifiesMembers(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	sender := "alice"
	edited := models.Message{ID: 11, RoomID: 5, SenderID: &sender, Body: "new text", IsEdited: true}

	messages.On("EditBody", mock.Anything, int64(5), int64(11), "alice", "new text").Return(edited, nil).Once()
	rooms.On("ListMembers", mock.Anything, int64(5)).Return([]models.Member{}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/rooms/5/messages/11", bytes.NewBufferString(`{"body":"new text"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.True(t, msg.IsEdited)
	messages.AssertExpectations(t)
	rooms.AssertExpectations(t)
}

func TestAddReactionSuccess(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	reacted := models.Message{ID: 11, RoomID: 5, Reactions: models.ReactionList{{Emoji: "👍", Count: 1, Users: []string{"alice"}}}}

	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()
	messages.On("AddReaction", mock.Anything, int64(5), int64(11), "alice", "👍").Return(reacted, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages/11/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestAddReactionToMessageInAnotherRoom(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	// message 99 lives in another room; the repository rejects the pair
	rooms.On("IsMember", mock.Anything, int64(5), "alice").Return(true, nil).Once()
	messages.On("AddReaction", mock.Anything, int64(5), int64(99), "alice", "👍").
		Return(models.Message{}, apperrors.ErrValidation).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages/99/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messages.AssertExpectations(t)
}

func TestEditMessageInAnotherRoom(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(rooms, messages)
	router := setupMessageRouter(handler)

	messages.On("EditBody", mock.Anything, int64(5), int64(99), "alice", "new text").
		Return(models.Message{}, apperrors.ErrValidation).Once()

	req := httptest.NewRequest(http.MethodPut, "/rooms/5/messages/99", bytes.NewBufferString(`{"body":"new text"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	rooms.AssertNotCalled(t, "ListMembers", mock.Anything, mock.Anything)
	messages.AssertExpectations(t)
}
