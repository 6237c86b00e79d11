package conversations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docamy/backend/internal/models"
)

func TestNextState_NonTerminal(t *testing.T) {
	for _, current := range []models.ConversationStatus{models.StatusActive, models.StatusProcessing} {
		t.Run(string(current), func(t *testing.T) {
			tr := NextState(current, false, models.EventVideoGenerated, "http://x/a.mp4")
			assert.True(t, tr.Changed)
			assert.Equal(t, models.StatusCompleted, tr.Next)
			assert.Equal(t, "http://x/a.mp4", tr.VideoURL)

			tr = NextState(current, false, models.EventCompleted, "")
			assert.True(t, tr.Changed)
			assert.Equal(t, models.StatusCompleted, tr.Next)
			assert.Empty(t, tr.VideoURL)

			tr = NextState(current, false, models.EventError, "")
			assert.True(t, tr.Changed)
			assert.Equal(t, models.StatusError, tr.Next)
		})
	}
}

func TestNextState_TerminalStatesStick(t *testing.T) {
	events := []models.WebhookEventType{models.EventVideoGenerated, models.EventCompleted, models.EventError}

	// Error accepts nothing.
	for _, ev := range events {
		tr := NextState(models.StatusError, false, ev, "http://x/a.mp4")
		assert.False(t, tr.Changed, "error + %s must be a no-op", ev)
		assert.Equal(t, models.StatusError, tr.Next)
	}

	// Completed with an artifact URL accepts nothing.
	for _, ev := range events {
		tr := NextState(models.StatusCompleted, true, ev, "http://x/other.mp4")
		assert.False(t, tr.Changed, "completed + %s must be a no-op", ev)
		assert.Equal(t, models.StatusCompleted, tr.Next)
	}
}

func TestNextState_CompletedBackfillsMissingURL(t *testing.T) {
	tr := NextState(models.StatusCompleted, false, models.EventVideoGenerated, "http://x/a.mp4")
	assert.True(t, tr.Changed)
	assert.Equal(t, models.StatusCompleted, tr.Next)
	assert.Equal(t, "http://x/a.mp4", tr.VideoURL)

	// No URL in the event, nothing to backfill.
	tr = NextState(models.StatusCompleted, false, models.EventVideoGenerated, "")
	assert.False(t, tr.Changed)

	// completed/error events never carry a URL to backfill.
	tr = NextState(models.StatusCompleted, false, models.EventCompleted, "")
	assert.False(t, tr.Changed)
	tr = NextState(models.StatusCompleted, false, models.EventError, "")
	assert.False(t, tr.Changed)
}

func TestNextState_Idempotent(t *testing.T) {
	// First delivery applies, replay is a no-op.
	tr := NextState(models.StatusActive, false, models.EventVideoGenerated, "http://x/a.mp4")
	assert.True(t, tr.Changed)

	replay := NextState(tr.Next, tr.VideoURL != "", models.EventVideoGenerated, "http://x/a.mp4")
	assert.False(t, replay.Changed)
	assert.Equal(t, tr.Next, replay.Next)

	tr = NextState(models.StatusProcessing, false, models.EventError, "")
	assert.True(t, tr.Changed)
	replay = NextState(tr.Next, false, models.EventError, "")
	assert.False(t, replay.Changed)
}

func TestNextState_ErrorBeforeVideoGenerated(t *testing.T) {
	// An errored conversation cannot be resurrected by a late video event.
	tr := NextState(models.StatusActive, false, models.EventError, "")
	assert.Equal(t, models.StatusError, tr.Next)

	late := NextState(tr.Next, false, models.EventVideoGenerated, "http://x/a.mp4")
	assert.False(t, late.Changed)
	assert.Equal(t, models.StatusError, late.Next)
	assert.Empty(t, late.VideoURL)
}

func TestPollStatus(t *testing.T) {
	s, terminal := pollStatus("completed")
	assert.True(t, terminal)
	assert.Equal(t, models.StatusCompleted, s)

	s, terminal = pollStatus("error")
	assert.True(t, terminal)
	assert.Equal(t, models.StatusError, s)

	for _, v := range []string{"active", "processing", "", "unknown"} {
		_, terminal = pollStatus(v)
		assert.False(t, terminal, "%q must not be terminal", v)
	}
}
