package utils

import (
	"errors"
	"io"
	"testing"
	"time"

	"leadpilot/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named in-memory database so every pooled connection sees the same data
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.MigrateDB(db))
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type recordingSender struct {
	sent []string
	fail bool
}

func (r *recordingSender) Send(lead *models.Lead, template, channel string) error {
	if r.fail {
		return errors.New("send failed")
	}
	r.sent = append(r.sent, lead.ID)
	return nil
}
