package worker

import (
	"context"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutomationWorker periodically sweeps the active sequences, dispatches due
// sends and refreshes the cached per-sequence counters.
type AutomationWorker struct {
	DB         *gorm.DB
	Dispatcher *utils.SequenceDispatcher
	Logger     *logrus.Logger
	Interval   time.Duration
}

func NewAutomationWorker(db *gorm.DB, dispatcher *utils.SequenceDispatcher, logger *logrus.Logger, interval time.Duration) *AutomationWorker {
	return &AutomationWorker{
		DB:         db,
		Dispatcher: dispatcher,
		Logger:     logger,
		Interval:   interval,
	}
}

func (aw *AutomationWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	aw.Logger.Info("Automation worker started")

	ticker := time.NewTicker(aw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			aw.Logger.Info("Automation worker shutting down...")
			return
		case <-ticker.C:
			aw.runOnce()
		}
	}
}

func (aw *AutomationWorker) runOnce() {
	sent, err := aw.Dispatcher.RunDueSequences()
	if err != nil {
		aw.Logger.WithError(err).Error("Automation sweep failed")
		return
	}
	if sent > 0 {
		aw.Logger.WithField("sent", sent).Info("Automation sweep dispatched messages")
	}

	aw.refreshAllStats()
}

func (aw *AutomationWorker) refreshAllStats() {
	var sequences []models.AutomationSequence
	if err := aw.DB.Find(&sequences).Error; err != nil {
		aw.Logger.WithError(err).Error("Failed to list sequences for stats refresh")
		return
	}
	for _, sequence := range sequences {
		if err := aw.Dispatcher.RefreshSequenceStats(sequence.ID); err != nil {
			aw.Logger.WithError(err).WithField("sequence_id", sequence.ID).
				Error("Failed to refresh sequence stats")
		}
	}
}
