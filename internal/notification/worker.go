package notification

import (
	"context"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"attendance-backend/internal/model"
	"attendance-backend/internal/store"
)

// Job asks the pool to tell a user why their attendance record was closed.
type Job struct {
	UserID string
	Source store.CheckOutSource
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering forced-checkout
// notifications to the affected user's subscribed browsers.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d notifying user %s (source: %s)", id, job.UserID, job.Source)
			wp.notifyUser(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a notification job. It never blocks the caller: when the
// queue is full the job is dropped, since the notification is a courtesy
// layered on top of the already-committed checkout.
func (wp *WorkerPool) Dispatch(userID string, source store.CheckOutSource) {
	select {
	case wp.jobs <- Job{UserID: userID, Source: source}:
	default:
		log.Printf("Notification queue full, dropping job for user %s", userID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

func messageFor(source store.CheckOutSource) string {
	switch source {
	case store.SourceInactivity:
		return "You were checked out automatically after a period of inactivity."
	case store.SourceEndOfDay:
		return "Your attendance record was closed by the end-of-day sweep."
	case store.SourceDisconnect:
		return "You were checked out when your session disconnected."
	default:
		return "You have been checked out."
	}
}

// notifyUser fetches the user's subscriptions and pushes the message to each.
func (wp *WorkerPool) notifyUser(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("user_id = ?", job.UserID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for user %s: %v", job.UserID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload := []byte(messageFor(job.Source))
	log.Printf("Sending %d notifications for user %s", len(subscriptions), job.UserID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
