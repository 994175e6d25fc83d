package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/ghanadude-checkout/pkg/db/models"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
)

func newRecorder(t *testing.T) (*GormRecorder, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.CheckoutSession{}))
	rec, err := NewGormRecorder(conn)
	require.NoError(t, err)
	return rec, conn
}

func TestNewGormRecorder_RequiresDB(t *testing.T) {
	_, err := NewGormRecorder(nil)
	require.Error(t, err)
}

func TestGormRecorder_TracksSessionThroughTransitions(t *testing.T) {
	ctx := context.Background()
	rec, conn := newRecorder(t)

	sess, err := NewSession(Dependencies{
		Cart:     newCart(t, "user:42"),
		Backend:  newFakeBackend(),
		Recorder: rec,
	}, Settings{})
	require.NoError(t, err)

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)

	var rows []models.CheckoutSession
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, sess.ID(), row.ID)
	assert.Equal(t, "user:42", row.Owner)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, row.State)
	require.NotNil(t, row.OrderID)
	assert.Equal(t, "1001", *row.OrderID)
	require.NotNil(t, row.DraftID)
	assert.Equal(t, sub.Draft().ID, *row.DraftID)
	assert.True(t, row.Total.Equal(decimal.NewFromInt(330)))

	require.NotNil(t, row.Draft)
	var draft OrderDraft
	require.NoError(t, json.Unmarshal([]byte(*row.Draft), &draft))
	assert.Equal(t, sub.Draft().ID, draft.ID)
	assert.Len(t, draft.Lines, 1)

	require.NoError(t, sess.PaymentSucceeded(ctx))
	latest, err := rec.Latest(ctx, "user:42")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, enums.CheckoutStateCompleted, latest.State)
}

func TestGormRecorder_StoresFailureReason(t *testing.T) {
	ctx := context.Background()
	rec, _ := newRecorder(t)

	sess, err := NewSession(Dependencies{
		Cart:     newCart(t, "user:42"),
		Backend:  newFakeBackend(),
		Recorder: rec,
	}, Settings{})
	require.NoError(t, err)

	form := validForm()
	form.Phone = ""
	_, err = sess.Submit(ctx, form, deliveryOpts(enums.PaymentMethodEFT))
	require.Error(t, err)

	latest, err := rec.Latest(ctx, "user:42")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, enums.CheckoutStateIdle, latest.State)
	require.NotNil(t, latest.FailureReason)
	assert.Contains(t, *latest.FailureReason, "phone is required")
	assert.Nil(t, latest.Draft)

	missing, err := rec.Latest(ctx, "user:nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormRecorder_PurgeBeforeKeepsSessionsInFlight(t *testing.T) {
	ctx := context.Background()
	rec, conn := newRecorder(t)

	for id, state := range map[string]enums.CheckoutState{
		"done":    enums.CheckoutStateCompleted,
		"gone":    enums.CheckoutStateCancelled,
		"waiting": enums.CheckoutStateAwaitingPayment,
	} {
		require.NoError(t, rec.Record(ctx, Record{SessionID: id, Owner: "user:42", State: state}))
	}
	stale := time.Now().Add(-120 * 24 * time.Hour)
	require.NoError(t, conn.Model(&models.CheckoutSession{}).
		Where("id IN ?", []string{"done", "waiting"}).
		UpdateColumn("updated_at", stale).Error)

	purged, err := rec.PurgeBefore(ctx, nil, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	var ids []string
	require.NoError(t, conn.Model(&models.CheckoutSession{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, []string{"gone", "waiting"}, ids)
}
