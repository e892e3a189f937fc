package repositories

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

func TestRoomSlug(t *testing.T) {
	now := time.UnixMilli(1712345678901)

	assert.Equal(t, "team-standup-678901", roomSlug("Team Standup", now))
	assert.Equal(t, "general-678901", roomSlug("  General!!  ", now))
	assert.Equal(t, "a-b-c-678901", roomSlug("a/b/c", now))
}

func TestRoomSlugDiffersOverTime(t *testing.T) {
	first := roomSlug("general", time.UnixMilli(1712345678901))
	second := roomSlug("general", time.UnixMilli(1712345678902))
	assert.NotEqual(t, first, second)
}

func TestNormalizeRoomInputDefaultsKind(t *testing.T) {
	name, kind, err := normalizeRoomInput("  General  ", "", "")
	assert.NoError(t, err)
	assert.Equal(t, "General", name)
	assert.Equal(t, models.RoomKindPrivate, kind)
}

func TestNormalizeRoomInputCountsCharactersNotBytes(t *testing.T) {
	// 100 two-byte characters: within the limit even though len() is 200
	name := strings.Repeat("é", 100)
	got, _, err := normalizeRoomInput(name, "", "")
	assert.NoError(t, err)
	assert.Equal(t, name, got)

	_, _, err = normalizeRoomInput(strings.Repeat("é", 101), "", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, _, err = normalizeRoomInput("ok", strings.Repeat("é", 501), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNormalizeRoomInputRejectsBadInput(t *testing.T) {
	_, _, err := normalizeRoomInput("   ", "", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, _, err = normalizeRoomInput("General", "", "broadcast")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTallyAddsNewReaction(t *testing.T) {
	reactions := tally(nil, "alice", "👍")

	assert.Len(t, reactions, 1)
	assert.Equal(t, "👍", reactions[0].Emoji)
	assert.Equal(t, 1, reactions[0].Count)
	assert.Equal(t, []string{"alice"}, reactions[0].Users)
}

func TestTallyIdempotentPerUser(t *testing.T) {
	reactions := tally(nil, "alice", "👍")
	reactions = tally(reactions, "alice", "👍")

	assert.Len(t, reactions, 1)
	assert.Equal(t, 1, reactions[0].Count)
}

func TestTallyCountsDistinctUsers(t *testing.T) {
	reactions := tally(nil, "alice", "👍")
	reactions = tally(reactions, "bob", "👍")
	reactions = tally(reactions, "bob", "🎉")

	assert.Len(t, reactions, 2)
	assert.Equal(t, 2, reactions[0].Count)
	assert.ElementsMatch(t, []string{"alice", "bob"}, reactions[0].Users)
	assert.Equal(t, models.Reaction{Emoji: "🎉", Count: 1, Users: []string{"bob"}}, reactions[1])
}
