package utils

import (
	"testing"
	"time"

	"leadpilot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, minScore, pageSize int) (*CallQueueBuilder, *fakeClock) {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)}
	return NewCallQueueBuilder(db, clock, minScore, pageSize), clock
}

func addLead(t *testing.T, cq *CallQueueBuilder, lead *models.Lead) *models.Lead {
	t.Helper()
	if lead.Status == "" {
		lead.Status = "new"
	}
	require.NoError(t, cq.DB.Create(lead).Error)
	return lead
}

func TestBuildOrdersByScoreDescending(t *testing.T) {
	cq, _ := newTestQueue(t, 70, 20)
	addLead(t, cq, &models.Lead{OwnerName: "A", LeadScore: 75})
	addLead(t, cq, &models.Lead{OwnerName: "B", LeadScore: 95})
	addLead(t, cq, &models.Lead{OwnerName: "C", LeadScore: 85})

	queue, err := cq.Build()
	require.NoError(t, err)
	require.Len(t, queue, 3)

	for i := 1; i < len(queue); i++ {
		assert.GreaterOrEqual(t, queue[i-1].Score, queue[i].Score)
	}
	assert.Equal(t, "B", queue[0].OwnerName)
}

func TestBuildFiltersByScoreAndStatus(t *testing.T) {
	cq, _ := newTestQueue(t, 70, 20)
	qualified := addLead(t, cq, &models.Lead{OwnerName: "High", LeadScore: 80, Status: "interested"})
	addLead(t, cq, &models.Lead{OwnerName: "Low", LeadScore: 69})
	addLead(t, cq, &models.Lead{OwnerName: "Done", LeadScore: 99, Status: "converted"})
	addLead(t, cq, &models.Lead{OwnerName: "Cold", LeadScore: 90, Status: "not_interested"})

	queue, err := cq.Build()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, qualified.ID, queue[0].ID)
}

func TestBuildRespectsPageSize(t *testing.T) {
	cq, _ := newTestQueue(t, 0, 3)
	for i := 0; i < 10; i++ {
		addLead(t, cq, &models.Lead{OwnerName: "Lead", LeadScore: 50 + i})
	}

	queue, err := cq.Build()
	require.NoError(t, err)
	assert.Len(t, queue, 3)
	assert.Equal(t, 59, queue[0].Score)
}

func TestBuildFillsDisplayFallbacks(t *testing.T) {
	cq, _ := newTestQueue(t, 0, 20)
	addLead(t, cq, &models.Lead{OwnerName: "สมชาย", LeadScore: 80})

	queue, err := cq.Build()
	require.NoError(t, err)
	require.Len(t, queue, 1)

	row := queue[0]
	assert.Equal(t, "สมชาย", row.OwnerNameEN)
	assert.Equal(t, "+66 XX XXX XXXX", row.Phone)
	assert.Equal(t, "Property", row.PropertyType)
	assert.Equal(t, "Location TBD", row.Location)
	assert.Equal(t, "9 AM - 5 PM", row.BestCallTime)
	assert.Equal(t, "initial_contact", row.AutomationStage)
	assert.Equal(t, "Initial contact needed", row.LastResponse)
	assert.Equal(t, "No response yet", row.ResponseTime)
}

func TestBuildUsesLatestInteraction(t *testing.T) {
	cq, clock := newTestQueue(t, 0, 20)
	lead := addLead(t, cq, &models.Lead{OwnerName: "Anan", LeadScore: 85})

	older := clock.now.Add(-30 * time.Hour)
	newer := clock.now.Add(-5 * time.Hour)
	require.NoError(t, cq.DB.Create(&models.Interaction{
		LeadID:    lead.ID,
		Type:      "message",
		Notes:     "Asked about price",
		Timestamp: older,
	}).Error)
	require.NoError(t, cq.DB.Create(&models.Interaction{
		LeadID:    lead.ID,
		Type:      "call",
		Notes:     "Wants a viewing this weekend",
		Timestamp: newer,
	}).Error)

	queue, err := cq.Build()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "Wants a viewing this weekend", queue[0].LastResponse)
	assert.Equal(t, "5 hours ago", queue[0].ResponseTime)
}
