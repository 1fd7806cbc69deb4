package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/expo"
	"github.com/unitradehq/unitrade-backend/internal/models"
)

func addToken(t *testing.T, db *gorm.DB, userID uint, token string, active bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.PushToken{
		UserID:     userID,
		Token:      token,
		DeviceType: models.DeviceTypeAndroid,
		IsActive:   active,
	}).Error)
}

func countLogs(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.NotificationLog{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestNotificationService_Send_NoTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fake, client := newFakeExpo(t)
	svc := &NotificationService{DB: db, Push: client}

	result := svc.Send(context.Background(), 1, "Hi", "there", nil, models.NotificationTypeSystem)

	assert.False(t, result.Success)
	assert.Equal(t, "no push tokens registered for user", result.Message)
	assert.Zero(t, fake.batchCount())
	// Zero-token attempts write no audit row.
	assert.Zero(t, countLogs(t, db, 1))
}

func TestNotificationService_Send_FiltersMalformedTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fake, client := newFakeExpo(t)
	svc := &NotificationService{DB: db, Push: client}

	addToken(t, db, 1, "not-an-expo-token", true)
	addToken(t, db, 1, "ExponentPushToken[good1]", true)
	addToken(t, db, 1, "ExpoPushToken[good2]", true)

	result := svc.Send(context.Background(), 1, "Hi", "there", nil, models.NotificationTypeSystem)

	require.True(t, result.Success)
	assert.Equal(t, 2, result.SentTo)
	require.Equal(t, 1, fake.batchCount())
	require.Len(t, fake.batches[0], 2)
	assert.Equal(t, "ExponentPushToken[good1]", fake.batches[0][0].To)
	assert.Equal(t, "default", fake.batches[0][0].Sound)
	assert.Equal(t, "high", fake.batches[0][0].Priority)

	var row models.NotificationLog
	require.NoError(t, db.Where("user_id = ?", 1).First(&row).Error)
	assert.Equal(t, 2, row.SentToTokens)
	assert.True(t, row.Successful)
	assert.Empty(t, row.ErrorMessage)
}

func TestNotificationService_Send_OnlyMalformedTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fake, client := newFakeExpo(t)
	svc := &NotificationService{DB: db, Push: client}

	addToken(t, db, 1, "garbage", true)

	result := svc.Send(context.Background(), 1, "Hi", "there", nil, models.NotificationTypeSystem)

	assert.False(t, result.Success)
	assert.Equal(t, "no valid tokens", result.Message)
	assert.Zero(t, fake.batchCount())
	assert.Zero(t, countLogs(t, db, 1))
}

func TestNotificationService_Send_SkipsInactiveTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fake, client := newFakeExpo(t)
	svc := &NotificationService{DB: db, Push: client}

	addToken(t, db, 1, "ExponentPushToken[active]", true)
	addToken(t, db, 1, "ExponentPushToken[dead]", false)

	result := svc.Send(context.Background(), 1, "Hi", "there", nil, models.NotificationTypeSystem)

	require.True(t, result.Success)
	assert.Equal(t, 1, result.SentTo)
	require.Len(t, fake.batches[0], 1)
	assert.Equal(t, "ExponentPushToken[active]", fake.batches[0][0].To)
}

func TestNotificationService_Send_DeactivatesDeadTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fake, client := newFakeExpo(t)
	svc := &NotificationService{DB: db, Push: client}

	addToken(t, db, 1, "ExponentPushToken[alive]", true)
	addToken(t, db, 1, "ExponentPushToken[gone]", true)

	fake.respond = func(batch []expo.Message) []expo.Ticket {
		tickets := make([]expo.Ticket, len(batch))
		for i, m := range batch {
			if m.To == "ExponentPushToken[gone]" {
				tickets[i] = expo.Ticket{Status: "error", Details: &expo.TicketDetails{Error: expo.ErrDeviceNotRegistered}}
				continue
			}
			tickets[i] = expo.Ticket{Status: "ok", ID: "ticket"}
		}
		return tickets
	}

	result := svc.Send(context.Background(), 1, "Hi", "there", nil, models.NotificationTypeOrder)

	// Per-message failure does not fail the batch.
	require.True(t, result.Success)
	assert.Equal(t, 2, result.SentTo)

	var gone models.PushToken
	require.NoError(t, db.Where("token = ?", "ExponentPushToken[gone]").First(&gone).Error)
	assert.False(t, gone.IsActive)

	var alive models.PushToken
	require.NoError(t, db.Where("token = ?", "ExponentPushToken[alive]").First(&alive).Error)
	assert.True(t, alive.IsActive)

	// The deactivated token is excluded from the next send.
	second := svc.Send(context.Background(), 1, "Hi again", "there", nil, models.NotificationTypeOrder)
	require.True(t, second.Success)
	assert.Equal(t, 1, second.SentTo)
	assert.Equal(t, "ExponentPushToken[alive]", fake.batches[1][0].To)
}

func TestNotificationService_Send_TransportFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fake, client := newFakeExpo(t)
	fake.status = http.StatusInternalServerError
	svc := &NotificationService{DB: db, Push: client}

	addToken(t, db, 1, "ExponentPushToken[abc]", true)

	result := svc.Send(context.Background(), 1, "Hi", "there", nil, models.NotificationTypeSystem)

	assert.False(t, result.Success)
	assert.Equal(t, "failed to send push notification", result.Message)

	// The attempt is still audited, with the error recorded.
	var row models.NotificationLog
	require.NoError(t, db.Where("user_id = ?", 1).First(&row).Error)
	assert.Equal(t, 1, row.SentToTokens)
	assert.False(t, row.Successful)
	assert.NotEmpty(t, row.ErrorMessage)

	// The token survives a transport failure.
	var token models.PushToken
	require.NoError(t, db.Where("user_id = ?", 1).First(&token).Error)
	assert.True(t, token.IsActive)
}

func TestNotificationService_SendBulk(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	_, client := newFakeExpo(t)
	svc := &NotificationService{DB: db, Push: client}

	addToken(t, db, 1, "ExponentPushToken[u1]", true)
	addToken(t, db, 3, "ExponentPushToken[u3]", true)

	// User 2 has no tokens; the others still get theirs.
	result := svc.SendBulk(context.Background(), []uint{1, 2, 3}, "Hi", "all", nil, models.NotificationTypeSystem)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
}
