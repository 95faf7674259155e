package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
	tu "github.com/emilythestrangee/lokniti/backend/internal/testutil"
)

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("carrier rejected")
	}
	f.sent = append(f.sent, to+":"+body)
	return nil
}

func TestLocality_WritesOneRowPerUser(t *testing.T) {
	db := tu.NewDB(t)
	a := tu.CreateUser(t, db, "Asha", "North Delhi", models.RoleUser)
	b := tu.CreateUser(t, db, "Bilal", "North Delhi", models.RoleUser)
	tu.CreateUser(t, db, "Chitra", "South Delhi", models.RoleUser)

	m := metrics.NewNop()
	n := New(nil, 2, m)
	postID := 42

	var batch *Batch
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = n.Locality(context.Background(), tx, Message{
			Text:     "Road closed",
			Locality: "North Delhi",
			PostID:   &postID,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Created)

	var rows []models.Notification
	require.NoError(t, db.Order("user_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].UserID)
	assert.Equal(t, b.ID, rows[1].UserID)
	for _, r := range rows {
		assert.Equal(t, "Road closed", r.Message)
		assert.Equal(t, "North Delhi", r.Locality)
		require.NotNil(t, r.PostID)
		assert.Equal(t, 42, *r.PostID)
		assert.False(t, r.Read)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Notifications))
}

func TestLocality_RollsBackWithTransaction(t *testing.T) {
	db := tu.NewDB(t)
	tu.CreateUser(t, db, "Asha", "North Delhi", models.RoleUser)
	n := New(nil, 1, metrics.NewNop())

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := n.Locality(context.Background(), tx, Message{Text: "x", Locality: "North Delhi"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLocality_EmptyLocality(t *testing.T) {
	db := tu.NewDB(t)
	n := New(nil, 1, metrics.NewNop())

	batch, err := n.Locality(context.Background(), db, Message{Text: "x", Locality: "Nowhere"})
	require.NoError(t, err)
	assert.Zero(t, batch.Created)
}

func TestDeliver_UrgentSMS(t *testing.T) {
	db := tu.NewDB(t)
	a := tu.CreateUser(t, db, "Asha", "North Delhi", models.RoleUser)
	b := tu.CreateUser(t, db, "Bilal", "North Delhi", models.RoleUser)
	tu.CreateUser(t, db, "Chitra", "North Delhi", models.RoleUser) // no phone
	require.NoError(t, db.Model(a).Update("phone", "+911111111111").Error)
	require.NoError(t, db.Model(b).Update("phone", "+912222222222").Error)

	sms := &fakeSMS{fail: map[string]bool{"+912222222222": true}}
	m := metrics.NewNop()
	n := New(sms, 2, m)

	batch, err := n.Locality(context.Background(), db, Message{Text: "Flood alert", Locality: "North Delhi", Urgent: true})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Created)

	n.DeliverAsync(context.Background(), batch)
	n.Wait()

	assert.Equal(t, []string{"+911111111111:Flood alert"}, sms.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SMS.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SMS.WithLabelValues("failed")))
}

func TestDeliver_NotUrgentSkipsSMS(t *testing.T) {
	db := tu.NewDB(t)
	a := tu.CreateUser(t, db, "Asha", "North Delhi", models.RoleUser)
	require.NoError(t, db.Model(a).Update("phone", "+911111111111").Error)

	sms := &fakeSMS{}
	n := New(sms, 1, metrics.NewNop())

	batch, err := n.Locality(context.Background(), db, Message{Text: "FYI", Locality: "North Delhi"})
	require.NoError(t, err)
	n.Deliver(context.Background(), batch)

	assert.Empty(t, sms.sent)
}
