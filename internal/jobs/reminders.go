package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/platefull/platefull-backend/internal/dates"
	"github.com/platefull/platefull-backend/internal/services"
	"github.com/platefull/platefull-backend/internal/storage"
)

// ReminderJob sends customers a heads-up shortly before a subscription
// lapses.
type ReminderJob struct {
	store      storage.Store
	messenger  services.Messenger
	windowDays int
	isRunning  bool
}

// NewReminderJob creates a reminder job scheduler. windowDays is how
// far ahead of the paid-until date customers are warned.
func NewReminderJob(store storage.Store, messenger services.Messenger, windowDays int) *ReminderJob {
	if windowDays <= 0 {
		windowDays = 3
	}
	return &ReminderJob{
		store:      store,
		messenger:  messenger,
		windowDays: windowDays,
	}
}

// Start begins the daily reminder schedule
func (j *ReminderJob) Start() {
	if j.isRunning {
		log.Println("Reminder job already running")
		return
	}
	j.isRunning = true
	log.Println("Starting subscription expiry reminders...")
	go j.scheduleDailyReminders()
}

// Stop halts the schedule after the current sleep
func (j *ReminderJob) Stop() {
	j.isRunning = false
	log.Println("Stopping subscription expiry reminders...")
}

// scheduleDailyReminders runs every day at 9 AM local time
func (j *ReminderJob) scheduleDailyReminders() {
	for j.isRunning {
		now := time.Now()
		nextRun := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
		if !nextRun.After(now) {
			nextRun = nextRun.AddDate(0, 0, 1)
		}

		log.Printf("Next expiry reminder run in %v", nextRun.Sub(now))
		time.Sleep(nextRun.Sub(now))

		if !j.isRunning {
			break
		}
		j.SendExpiryReminders()
	}
}

// SendExpiryReminders messages every customer whose subscription ends
// within the reminder window.
func (j *ReminderJob) SendExpiryReminders() {
	today := dates.StartOfDay(time.Now())
	windowEnd := today.AddDate(0, 0, j.windowDays)

	expiring, err := j.store.SubscriptionsExpiringBetween(today, windowEnd)
	if err != nil {
		log.Printf("Failed to list expiring subscriptions: %v", err)
		return
	}

	sent := 0
	for _, subscription := range expiring {
		customer, err := j.store.GetCustomerByID(subscription.OwnerID)
		if err != nil {
			log.Printf("Skipping reminder for subscription %s: %v", subscription.SubscriptionID, err)
			continue
		}

		preferenceName := "your menu"
		if preference, err := j.store.GetPreference(subscription.PreferenceID); err == nil {
			preferenceName = preference.Name
		}

		text := fmt.Sprintf("Hi %s! Your %s subscription runs out on %s. Renew any time from the main menu.",
			customer.Name, preferenceName, subscription.PaidUntil.Format("2006-01-02"))
		if err := j.messenger.SendText(customer.Identity, text); err != nil {
			log.Printf("Failed to send expiry reminder to %s: %v", customer.Identity, err)
			continue
		}
		sent++
	}

	log.Printf("Expiry reminders sent: %d of %d expiring", sent, len(expiring))
}
