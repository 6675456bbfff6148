package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

type fakeActivityWriter struct {
	sessions map[string]shared.UserID
	ended    map[string]time.Time
	outcomes []bool
}

func newFakeActivityWriter() *fakeActivityWriter {
	return &fakeActivityWriter{sessions: map[string]shared.UserID{}, ended: map[string]time.Time{}}
}

func (f *fakeActivityWriter) RecordSessionStart(_ context.Context, user shared.UserID, _ time.Time) (string, error) {
	id := "session-" + string(user)
	f.sessions[id] = user
	return id, nil
}

func (f *fakeActivityWriter) RecordSessionEnd(_ context.Context, sessionID string, endedAt time.Time, _, _ int) error {
	f.ended[sessionID] = endedAt
	return nil
}

func (f *fakeActivityWriter) RecordTaskOutcome(_ context.Context, _ shared.UserID, approved bool, _ time.Time) error {
	f.outcomes = append(f.outcomes, approved)
	return nil
}

func TestRecordActivity_SessionLifecycle(t *testing.T) {
	writer := newFakeActivityWriter()
	h := NewRecordActivityHandler(writer, nil)

	id, err := h.HandleStartSession(context.Background(), StartSessionCommand{UserID: "user-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, shared.UserID("user-1"), writer.sessions[id])

	err = h.HandleEndSession(context.Background(), EndSessionCommand{SessionID: id, XPEarned: 40, Answers: 12})
	require.NoError(t, err)
	assert.Contains(t, writer.ended, id)
}

func TestRecordActivity_TaskOutcome(t *testing.T) {
	writer := newFakeActivityWriter()
	h := NewRecordActivityHandler(writer, nil)

	require.NoError(t, h.HandleTaskOutcome(context.Background(), RecordTaskOutcomeCommand{UserID: "user-2", Approved: true}))
	require.NoError(t, h.HandleTaskOutcome(context.Background(), RecordTaskOutcomeCommand{UserID: "user-2", Approved: false}))
	assert.Equal(t, []bool{true, false}, writer.outcomes)
}

func TestRecordActivity_Validation(t *testing.T) {
	h := NewRecordActivityHandler(newFakeActivityWriter(), nil)

	_, err := h.HandleStartSession(context.Background(), StartSessionCommand{})
	assert.Error(t, err)

	err = h.HandleEndSession(context.Background(), EndSessionCommand{})
	assert.Error(t, err)

	err = h.HandleEndSession(context.Background(), EndSessionCommand{SessionID: "s-1", XPEarned: -5})
	assert.Error(t, err)

	err = h.HandleTaskOutcome(context.Background(), RecordTaskOutcomeCommand{})
	assert.Error(t, err)
}
