package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

func TestDueReviews_ListsAndAnnouncesDueSkills(t *testing.T) {
	user := shared.UserID("user-1")
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	dueRow := mastery.NewSkillMastery(user, "s-due", now)
	dueRow.NextReviewAt = &past
	laterRow := mastery.NewSkillMastery(user, "s-later", now)
	laterRow.NextReviewAt = &future

	repo := &planMasteryRepo{rows: map[shared.SkillID]*mastery.SkillMastery{
		"s-due":   dueRow,
		"s-later": laterRow,
	}}
	bus := &fakeBus{}

	h := NewDueReviewsHandler(repo, bus, nil)
	result, err := h.Handle(context.Background(), DueReviewsQuery{UserID: user})
	require.NoError(t, err)

	require.Equal(t, []shared.SkillID{"s-due"}, result.SkillIDs)
	require.Len(t, bus.published, 1)
	assert.Equal(t, shared.EventReviewDue, bus.published[0].EventType())
	assert.Equal(t, "s-due", bus.published[0].Payload()["skill_id"])
}

func TestDueReviews_RequiresUser(t *testing.T) {
	h := NewDueReviewsHandler(&planMasteryRepo{}, &fakeBus{}, nil)

	_, err := h.Handle(context.Background(), DueReviewsQuery{})
	assert.Error(t, err)
}
