package utils

import (
	"testing"
	"time"

	"leadpilot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*SequenceDispatcher, *recordingSender, *fakeClock) {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	sender := &recordingSender{}
	return NewSequenceDispatcher(db, newTestLogger(), clock, sender), sender, clock
}

func createSequence(t *testing.T, sd *SequenceDispatcher, dailyLimit, sentToday int, status string, stages ...string) *models.AutomationSequence {
	t.Helper()
	sequence := &models.AutomationSequence{
		Name:       "Test Sequence",
		Type:       "facebook_message",
		Status:     status,
		Template:   "Hello {{name}}",
		DailyLimit: dailyLimit,
		SentToday:  sentToday,
	}
	for i, stage := range stages {
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			StepNumber: i + 1,
			StageName:  stage,
			DelayHours: 72,
		})
	}
	require.NoError(t, sd.DB.Create(sequence).Error)
	return sequence
}

func createLeadAtStage(t *testing.T, sd *SequenceDispatcher, stage, status string) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		OwnerName:       "Somchai",
		Status:          status,
		AutomationStage: Pointer(stage),
	}
	require.NoError(t, sd.DB.Create(lead).Error)
	return lead
}

func TestRunSequenceRespectsDailyLimit(t *testing.T) {
	sd, sender, _ := newTestDispatcher(t)
	sequence := createSequence(t, sd, 30, 29, "active", "facebook_initial")

	for i := 0; i < 5; i++ {
		createLeadAtStage(t, sd, "facebook_initial", "new")
	}

	sent, err := sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, sender.sent, 1)

	var updated models.AutomationSequence
	require.NoError(t, sd.DB.First(&updated, "id = ?", sequence.ID).Error)
	assert.Equal(t, 30, updated.SentToday)

	// Limit reached, a second run the same day sends nothing
	sent, err = sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, sender.sent, 1)
}

func TestRunSequencePausedIsNoOp(t *testing.T) {
	sd, sender, _ := newTestDispatcher(t)
	sequence := createSequence(t, sd, 50, 0, "paused", "facebook_initial")
	lead := createLeadAtStage(t, sd, "facebook_initial", "new")

	sent, err := sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, sender.sent)

	var updated models.Lead
	require.NoError(t, sd.DB.First(&updated, "id = ?", lead.ID).Error)
	require.NotNil(t, updated.AutomationStage)
	assert.Equal(t, "facebook_initial", *updated.AutomationStage)
	assert.Nil(t, updated.LastContact)

	var interactions int64
	require.NoError(t, sd.DB.Model(&models.Interaction{}).Count(&interactions).Error)
	assert.Zero(t, interactions)
}

func TestRunSequenceNotFound(t *testing.T) {
	sd, _, _ := newTestDispatcher(t)

	_, err := sd.RunSequence("seq_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunSequenceAdvancesLeadStage(t *testing.T) {
	sd, _, clock := newTestDispatcher(t)
	sequence := createSequence(t, sd, 50, 0, "active", "facebook_initial", "facebook_followup")
	first := createLeadAtStage(t, sd, "facebook_initial", "contacted")
	last := createLeadAtStage(t, sd, "facebook_followup", "contacted")

	sent, err := sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	var updated models.Lead
	require.NoError(t, sd.DB.First(&updated, "id = ?", first.ID).Error)
	require.NotNil(t, updated.AutomationStage)
	assert.Equal(t, "facebook_followup", *updated.AutomationStage)
	require.NotNil(t, updated.LastContact)
	assert.True(t, updated.LastContact.Equal(clock.now))

	// The last step has no successor, the lead leaves automation
	var updatedLast models.Lead
	require.NoError(t, sd.DB.First(&updatedLast, "id = ?", last.ID).Error)
	assert.Nil(t, updatedLast.AutomationStage)
}

func TestRunSequenceSkipsTerminalLeads(t *testing.T) {
	sd, sender, _ := newTestDispatcher(t)
	sequence := createSequence(t, sd, 50, 0, "active", "facebook_initial")
	createLeadAtStage(t, sd, "facebook_initial", "not_interested")
	createLeadAtStage(t, sd, "facebook_initial", "converted")
	reachable := createLeadAtStage(t, sd, "facebook_initial", "interested")

	sent, err := sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{reachable.ID}, sender.sent)
}

func TestRunSequenceHonorsStepDelay(t *testing.T) {
	sd, sender, clock := newTestDispatcher(t)
	sequence := createSequence(t, sd, 50, 0, "active", "facebook_initial", "facebook_followup")
	lead := createLeadAtStage(t, sd, "facebook_initial", "contacted")

	// Never contacted, the first step fires right away
	sent, err := sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// The follow-up step waits out its 72 hour delay from the last touch
	sent, err = sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, sender.sent, 1)

	clock.now = clock.now.Add(73 * time.Hour)
	sent, err = sd.RunSequence(sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var updated models.Lead
	require.NoError(t, sd.DB.First(&updated, "id = ?", lead.ID).Error)
	assert.Nil(t, updated.AutomationStage)
}

func TestRunSequenceRecordsInteraction(t *testing.T) {
	sd, _, clock := newTestDispatcher(t)
	sequence := createSequence(t, sd, 50, 0, "active", "day_3_follow_up")
	lead := createLeadAtStage(t, sd, "day_3_follow_up", "contacted")

	_, err := sd.RunSequence(sequence.ID)
	require.NoError(t, err)

	var interaction models.Interaction
	require.NoError(t, sd.DB.First(&interaction, "lead_id = ?", lead.ID).Error)
	assert.True(t, interaction.Automated)
	assert.Equal(t, "outbound", interaction.Direction)
	assert.Equal(t, "day_3_follow_up", interaction.Stage)
	assert.Equal(t, "message", interaction.Type)
	assert.True(t, interaction.Timestamp.Equal(clock.now))
}

func TestRunDueSequencesSkipsFutureSchedules(t *testing.T) {
	sd, sender, clock := newTestDispatcher(t)

	createSequence(t, sd, 50, 0, "active", "facebook_initial")
	notDue := createSequence(t, sd, 50, 0, "active", "day_3_follow_up")
	future := clock.now.Add(2 * time.Hour)
	require.NoError(t, sd.DB.Model(notDue).Update("next_execution", future).Error)

	createLeadAtStage(t, sd, "facebook_initial", "new")
	createLeadAtStage(t, sd, "day_3_follow_up", "contacted")

	total, err := sd.RunDueSequences()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, sender.sent, 1)
}

func TestRefreshSequenceStats(t *testing.T) {
	sd, _, clock := newTestDispatcher(t)
	sequence := createSequence(t, sd, 50, 0, "active", "facebook_initial", "facebook_followup")

	lead := createLeadAtStage(t, sd, "facebook_initial", "contacted")
	createLeadAtStage(t, sd, "facebook_followup", "contacted")

	outcomes := []string{"interested", "no_response", "no_response"}
	for _, outcome := range outcomes {
		require.NoError(t, sd.DB.Create(&models.Interaction{
			LeadID:    lead.ID,
			Type:      "message",
			Direction: "outbound",
			Outcome:   outcome,
			Automated: true,
			Stage:     "facebook_initial",
			Timestamp: clock.now,
		}).Error)
	}

	require.NoError(t, sd.RefreshSequenceStats(sequence.ID))

	var updated models.AutomationSequence
	require.NoError(t, sd.DB.First(&updated, "id = ?", sequence.ID).Error)
	assert.Equal(t, 2, updated.LeadsInSequence)
	assert.InDelta(t, 33.3, updated.SuccessRate, 0.01)
}

func TestResetDailyCountersOnce(t *testing.T) {
	sd, _, _ := newTestDispatcher(t)
	first := createSequence(t, sd, 50, 42, "active", "facebook_initial")
	second := createSequence(t, sd, 30, 7, "paused", "day_3_follow_up")

	require.NoError(t, sd.ResetDailyCountersOnce())

	for _, id := range []string{first.ID, second.ID} {
		var sequence models.AutomationSequence
		require.NoError(t, sd.DB.First(&sequence, "id = ?", id).Error)
		assert.Zero(t, sequence.SentToday)
	}
}
