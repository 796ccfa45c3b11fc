package models

import "gorm.io/gorm"

// MigrateDB creates or updates the schema for every model
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&Lead{},
		&Interaction{},
		&AutomationSequence{},
		&SequenceStep{},
		&Contract{},
	)
}

// CreateDefaultSequences seeds the standard outreach sequences on first boot
func CreateDefaultSequences(db *gorm.DB) error {
	defaultSequences := []AutomationSequence{
		{
			Name:       "Facebook Initial Contact",
			Type:       "facebook_message",
			Template:   "Hi {owner_name}, I noticed your property in {location}. Are you still looking to sell?",
			DailyLimit: 50,
			Steps: []SequenceStep{
				{StepNumber: 1, StageName: "facebook_initial", DelayHours: 0},
				{StepNumber: 2, StageName: "facebook_followup", DelayHours: 48},
			},
		},
		{
			Name:       "Day 3 Follow Up",
			Type:       "email",
			Template:   "Hello {owner_name}, following up on your {property_type} listing. We have interested buyers in {location}.",
			DailyLimit: 30,
			Steps: []SequenceStep{
				{StepNumber: 1, StageName: "day_3_follow_up", DelayHours: 72},
				{StepNumber: 2, StageName: "day_7_email", DelayHours: 96},
			},
		},
		{
			Name:       "Listing Presentation Offer",
			Type:       "email_with_attachment",
			Template:   "Hi {owner_name}, attached is our market analysis for {location}. Can we schedule a call this week?",
			DailyLimit: 20,
			Steps: []SequenceStep{
				{StepNumber: 1, StageName: "presentation_offer", DelayHours: 120},
			},
		},
	}
	for _, sequence := range defaultSequences {
		if err := db.FirstOrCreate(&sequence, "name = ?", sequence.Name).Error; err != nil {
			return err
		}
	}
	return nil
}
