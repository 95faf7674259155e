// Package notify fans a message out to every user of a locality.
//
// Notification rows are written inside the caller's transaction, so they
// commit or roll back together with the action that caused them. Urgent
// messages can additionally go out by SMS once the transaction has
// committed; SMS delivery is best effort and never fails the caller.
package notify

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

const insertBatchSize = 200

// SMSSender delivers a text message to one phone number.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

type Message struct {
	Text     string
	Locality string
	PostID   *int
	// Urgent messages are also sent by SMS when a sender is configured.
	Urgent bool
}

// Batch is the outcome of a fan-out: how many rows were written and which
// phone numbers still need an SMS.
type Batch struct {
	Created int
	text    string
	phones  []string
}

type Notifier struct {
	sms         SMSSender
	concurrency int
	metrics     *metrics.Metrics
	pending     sync.WaitGroup
}

// New builds a Notifier. sms may be nil to disable SMS.
func New(sms SMSSender, concurrency int, m *metrics.Metrics) *Notifier {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Notifier{sms: sms, concurrency: concurrency, metrics: m}
}

// Locality writes one notification for every user whose locality matches.
func (n *Notifier) Locality(ctx context.Context, tx *gorm.DB, msg Message) (*Batch, error) {
	var users []models.User
	if err := tx.WithContext(ctx).
		Select("id", "phone").
		Where("locality = ?", msg.Locality).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load locality users: %w", err)
	}

	batch := &Batch{text: msg.Text}
	if len(users) == 0 {
		return batch, nil
	}

	rows := make([]models.Notification, 0, len(users))
	for _, u := range users {
		rows = append(rows, models.Notification{
			UserID:   u.ID,
			Locality: msg.Locality,
			PostID:   msg.PostID,
			Message:  msg.Text,
		})
		if msg.Urgent && n.sms != nil && u.Phone != "" {
			batch.phones = append(batch.phones, u.Phone)
		}
	}

	if err := tx.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return nil, fmt.Errorf("create notifications: %w", err)
	}
	batch.Created = len(rows)
	n.metrics.Notifications.Add(float64(len(rows)))
	return batch, nil
}

// Deliver sends the pending SMS of a batch and waits for them.
func (n *Notifier) Deliver(ctx context.Context, b *Batch) {
	if b == nil || n.sms == nil || len(b.phones) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for _, phone := range b.phones {
		g.Go(func() error {
			if err := n.sms.Send(gctx, phone, b.text); err != nil {
				n.metrics.SMS.WithLabelValues("failed").Inc()
				logging.Ctx(ctx).Warn().Err(err).Msg("sms delivery failed")
				return nil
			}
			n.metrics.SMS.WithLabelValues("sent").Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// DeliverAsync runs Deliver in the background, detached from the request's
// cancellation. Wait blocks until every background delivery is done.
func (n *Notifier) DeliverAsync(ctx context.Context, b *Batch) {
	if b == nil || n.sms == nil || len(b.phones) == 0 {
		return
	}
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		n.Deliver(context.WithoutCancel(ctx), b)
	}()
}

func (n *Notifier) Wait() {
	n.pending.Wait()
}
