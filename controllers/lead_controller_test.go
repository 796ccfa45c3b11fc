package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testClock struct {
	now time.Time
}

func (tc *testClock) Now() time.Time {
	return tc.now
}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	// Foreign keys enforced to match the postgres schema
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.MigrateDB(db))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	callQueue := utils.NewCallQueueBuilder(db, clock, 70, 20)
	lc := NewLeadController(db, logger, clock, callQueue)

	app := fiber.New()
	leads := app.Group("/api/v1/leads")
	leads.Post("/", lc.CreateLead)
	leads.Get("/", lc.GetLeads)
	leads.Get("/call-queue", lc.GetCallQueue)
	leads.Get("/:id", lc.GetLead)
	leads.Put("/:id/status", lc.UpdateLeadStatus)
	leads.Post("/:id/interactions", lc.CreateInteraction)
	leads.Delete("/:id", lc.DeleteLead)

	return app, db
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateLeadAppliesDefaults(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest("POST", "/api/v1/leads/", fiber.Map{
		"owner_name": "Somchai",
		"source":     "facebook",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "new", data["status"])
	assert.Equal(t, "medium", data["urgency"])
	assert.EqualValues(t, 0, data["lead_score"])
	assert.Contains(t, data["id"], "lead_")
}

func TestCreateLeadRoundTrip(t *testing.T) {
	app, _ := newTestApp(t)

	payload := fiber.Map{
		"owner_name":           "สมชาย ใจดี",
		"owner_name_en":        "Somchai Jaidee",
		"phone":                "+66 81 234 5678",
		"email":                "somchai@example.com",
		"messenger_link":       "https://m.me/somchai",
		"property_type":        "Villa",
		"location":             "Rawai, Phuket",
		"property_value":       8500000.0,
		"commission_potential": 255000.0,
		"status":               "contacted",
		"lead_score":           82,
		"urgency":              "high",
		"source":               "facebook",
		"best_call_time":       "10 AM - 12 PM",
		"tags":                 []string{"pool", "sea_view"},
		"notes":                "Owner relocating to Bangkok",
	}

	resp, err := app.Test(jsonRequest("POST", "/api/v1/leads/", payload), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)["data"].(map[string]interface{})
	leadID := created["id"].(string)
	assert.Contains(t, leadID, "lead_")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/leads/"+leadID, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	fetched := decodeBody(t, resp)["data"].(map[string]interface{})

	// Every supplied field comes back exactly as sent
	for field, want := range map[string]interface{}{
		"owner_name":     "สมชาย ใจดี",
		"owner_name_en":  "Somchai Jaidee",
		"phone":          "+66 81 234 5678",
		"email":          "somchai@example.com",
		"messenger_link": "https://m.me/somchai",
		"property_type":  "Villa",
		"location":       "Rawai, Phuket",
		"status":         "contacted",
		"urgency":        "high",
		"source":         "facebook",
		"best_call_time": "10 AM - 12 PM",
		"notes":          "Owner relocating to Bangkok",
	} {
		assert.Equal(t, want, fetched[field], field)
	}
	assert.Equal(t, leadID, fetched["id"])
	assert.EqualValues(t, 82, fetched["lead_score"])
	assert.InDelta(t, 8500000.0, fetched["property_value"].(float64), 0.001)
	assert.InDelta(t, 255000.0, fetched["commission_potential"].(float64), 0.001)
	assert.Equal(t, []interface{}{"pool", "sea_view"}, fetched["tags"])
}

func TestCreateLeadRejectsOutOfRangeScore(t *testing.T) {
	app, db := newTestApp(t)

	resp, err := app.Test(jsonRequest("POST", "/api/v1/leads/", fiber.Map{
		"owner_name": "Somchai",
		"lead_score": 150,
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Lead{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateLeadStatusRecordsInteraction(t *testing.T) {
	app, db := newTestApp(t)

	lead := models.Lead{OwnerName: "Somchai", Status: "new"}
	require.NoError(t, db.Create(&lead).Error)

	resp, err := app.Test(jsonRequest("PUT", "/api/v1/leads/"+lead.ID+"/status", fiber.Map{
		"status": "interested",
		"notes":  "Replied on Facebook",
		"agent":  "Nok",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated models.Lead
	require.NoError(t, db.First(&updated, "id = ?", lead.ID).Error)
	assert.Equal(t, "interested", updated.Status)
	require.NotNil(t, updated.LastContact)

	var interaction models.Interaction
	require.NoError(t, db.First(&interaction, "lead_id = ?", lead.ID).Error)
	assert.Equal(t, "status_update", interaction.Type)
	assert.Equal(t, "interested", interaction.Outcome)
	assert.Equal(t, "Nok", interaction.Agent)
}

func TestUpdateLeadStatusNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest("PUT", "/api/v1/leads/lead_missing/status", fiber.Map{
		"status": "contacted",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteLeadRemovesContractsAndInteractions(t *testing.T) {
	app, db := newTestApp(t)

	lead := models.Lead{OwnerName: "Somchai", Status: "interested"}
	require.NoError(t, db.Create(&lead).Error)

	// Convert the lead so a contract references it before the delete
	clock := &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	ledger := utils.NewContractLedger(db, clock)
	contract := &models.Contract{LeadID: lead.ID, ListingPrice: 5000000, CommissionRate: 3}
	require.NoError(t, ledger.CreateContract(contract))

	require.NoError(t, db.Create(&models.Interaction{
		LeadID:    lead.ID,
		Type:      "call",
		Direction: "outbound",
		Timestamp: clock.now,
	}).Error)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/leads/"+lead.ID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, model := range []interface{}{&models.Lead{}, &models.Interaction{}, &models.Contract{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestGetCallQueueEndpoint(t *testing.T) {
	app, db := newTestApp(t)

	require.NoError(t, db.Create(&models.Lead{OwnerName: "Hot", Status: "interested", LeadScore: 90}).Error)
	require.NoError(t, db.Create(&models.Lead{OwnerName: "Cold", Status: "new", LeadScore: 10}).Error)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/leads/call-queue", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["count"])
}
