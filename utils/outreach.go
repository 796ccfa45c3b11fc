package utils

import (
	"leadpilot/models"

	"github.com/sirupsen/logrus"
)

// OutreachSender delivers a single outreach message to a lead. Actual
// delivery (Facebook, LINE, email) lives outside this service; the dispatcher
// only records the outcome.
type OutreachSender interface {
	Send(lead *models.Lead, template, channel string) error
}

// LogOutreachSender is the default sender. It performs no delivery and only
// logs what would have been sent.
type LogOutreachSender struct {
	Logger *logrus.Logger
}

func NewLogOutreachSender(logger *logrus.Logger) *LogOutreachSender {
	return &LogOutreachSender{Logger: logger}
}

func (s *LogOutreachSender) Send(lead *models.Lead, template, channel string) error {
	s.Logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"channel": channel,
	}).Info("Outreach message dispatched")
	return nil
}
