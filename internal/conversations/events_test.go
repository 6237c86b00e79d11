package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docamy/backend/internal/models"
)

type fakeEventStore struct {
	result *EventResult
	err    error
	events []*models.WebhookEvent
}

func (f *fakeEventStore) ApplyEvent(_ context.Context, event *models.WebhookEvent) (*EventResult, error) {
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestProcessor_AppliedCompletionEnqueuesArchive(t *testing.T) {
	cv := &models.Conversation{
		ID:                  uuid.New(),
		TavusConversationID: "tv-1",
		Status:              models.StatusCompleted,
		VideoURL:            "http://cdn/v.mp4",
	}
	store := &fakeEventStore{result: &EventResult{Outcome: OutcomeApplied, Conversation: cv}}
	archive := &fakeEnqueuer{}
	p := NewProcessor(store, archive, nil)

	outcome, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      models.EventVideoGenerated,
		ConversationID: "tv-1",
		Data:           models.WebhookEventData{VideoURL: "http://cdn/v.mp4"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	if assert.Len(t, archive.payloads, 1) {
		assert.Equal(t, cv.ID, archive.payloads[0].ConversationID)
		assert.Equal(t, "http://cdn/v.mp4", archive.payloads[0].VideoURL)
	}
}

func TestProcessor_AlreadyArchivedNotReEnqueued(t *testing.T) {
	cv := &models.Conversation{
		ID:                  uuid.New(),
		TavusConversationID: "tv-1",
		Status:              models.StatusCompleted,
		VideoURL:            "http://cdn/v.mp4",
		S3Key:               "videos/tv-1/x.mp4",
	}
	store := &fakeEventStore{result: &EventResult{Outcome: OutcomeApplied, Conversation: cv}}
	archive := &fakeEnqueuer{}
	p := NewProcessor(store, archive, nil)

	_, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      models.EventVideoGenerated,
		ConversationID: "tv-1",
	})
	require.NoError(t, err)
	assert.Empty(t, archive.payloads)
}

func TestProcessor_IgnoredOutcomeSkipsArchive(t *testing.T) {
	cv := &models.Conversation{Status: models.StatusCompleted, VideoURL: "http://cdn/v.mp4"}
	store := &fakeEventStore{result: &EventResult{Outcome: OutcomeIgnored, Conversation: cv}}
	archive := &fakeEnqueuer{}
	p := NewProcessor(store, archive, nil)

	outcome, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      models.EventCompleted,
		ConversationID: "tv-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, archive.payloads)
}

func TestProcessor_UnknownConversation(t *testing.T) {
	store := &fakeEventStore{result: &EventResult{Outcome: OutcomeUnknown}}
	p := NewProcessor(store, nil, nil)

	outcome, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      models.EventCompleted,
		ConversationID: "tv-nope",
	})
	require.NoError(t, err, "unknown conversations are not errors")
	assert.Equal(t, OutcomeUnknown, outcome)
}

func TestProcessor_InvalidEventType(t *testing.T) {
	store := &fakeEventStore{}
	p := NewProcessor(store, nil, nil)

	_, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      "conversation.renamed",
		ConversationID: "tv-1",
	})
	assert.Error(t, err)
	assert.Empty(t, store.events, "invalid events never reach the store")
}

func TestProcessor_StoreErrorSurfaces(t *testing.T) {
	store := &fakeEventStore{err: errors.New("tx aborted")}
	p := NewProcessor(store, nil, nil)

	_, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      models.EventCompleted,
		ConversationID: "tv-1",
	})
	assert.Error(t, err)
}

func TestProcessor_EnqueueFailureIsNotFatal(t *testing.T) {
	cv := &models.Conversation{
		ID:                  uuid.New(),
		TavusConversationID: "tv-1",
		Status:              models.StatusCompleted,
		VideoURL:            "http://cdn/v.mp4",
	}
	store := &fakeEventStore{result: &EventResult{Outcome: OutcomeApplied, Conversation: cv}}
	archive := &fakeEnqueuer{err: errors.New("redis down")}
	p := NewProcessor(store, archive, nil)

	outcome, err := p.Process(context.Background(), &models.WebhookEvent{
		EventType:      models.EventVideoGenerated,
		ConversationID: "tv-1",
	})
	require.NoError(t, err, "the state change is committed; archival is best-effort")
	assert.Equal(t, OutcomeApplied, outcome)
}
