package service

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/expo"
	"github.com/unitradehq/unitrade-backend/internal/logging"
	"github.com/unitradehq/unitrade-backend/internal/models"
)

type DispatchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SentTo  int    `json:"sent_to,omitempty"`
}

type BulkResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

type NotificationService struct {
	DB   *gorm.DB
	Push *expo.Client
}

// Send fans a notification out to every active device of the user. It never
// returns an error: transport failures come back as a structured result so a
// failed push can't fail the order or message that triggered it.
func (svc *NotificationService) Send(ctx context.Context, userID uint, title, body string, data map[string]interface{}, category string) DispatchResult {
	l := logging.FromContext(ctx)

	var tokens []models.PushToken
	if err := svc.DB.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&tokens).Error; err != nil {
		l.Error("push_token_lookup_failed", "user_id", userID, "error", err)
		return DispatchResult{Success: false, Message: "failed to load push tokens"}
	}
	if len(tokens) == 0 {
		l.Warn("no_push_tokens", "user_id", userID)
		return DispatchResult{Success: false, Message: "no push tokens registered for user"}
	}

	if data == nil {
		data = map[string]interface{}{}
	}

	// Malformed tokens are dropped silently; kept stays index-aligned with
	// messages so gateway tickets map back to the right row.
	var messages []expo.Message
	var kept []models.PushToken
	for _, t := range tokens {
		if !expo.IsExpoToken(t.Token) {
			continue
		}
		messages = append(messages, expo.Message{
			To:       t.Token,
			Sound:    "default",
			Title:    title,
			Body:     body,
			Data:     data,
			Badge:    1,
			Priority: "high",
		})
		kept = append(kept, t)
	}
	if len(messages) == 0 {
		return DispatchResult{Success: false, Message: "no valid tokens"}
	}

	tickets, sendErr := svc.Push.SendMessages(ctx, messages)

	svc.writeLog(ctx, userID, category, title, body, data, len(messages), sendErr)

	if sendErr != nil {
		l.Error("push_send_failed", "user_id", userID, "error", sendErr)
		return DispatchResult{Success: false, Message: "failed to send push notification"}
	}

	svc.deactivateDeadTokens(ctx, kept, tickets)

	l.Info("push_sent", "user_id", userID, "devices", len(messages))
	return DispatchResult{Success: true, Message: "notification sent successfully", SentTo: len(messages)}
}

// SendBulk applies Send per user; one user's failure never aborts the rest.
func (svc *NotificationService) SendBulk(ctx context.Context, userIDs []uint, title, body string, data map[string]interface{}, category string) BulkResult {
	result := BulkResult{Total: len(userIDs)}
	for _, id := range userIDs {
		if svc.Send(ctx, id, title, body, data, category).Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}
	return result
}

// writeLog records exactly one audit row per gateway attempt. A failed write
// is logged and otherwise ignored.
func (svc *NotificationService) writeLog(ctx context.Context, userID uint, category, title, body string, data map[string]interface{}, attempted int, sendErr error) {
	encoded, _ := json.Marshal(data)

	row := models.NotificationLog{
		UserID:       userID,
		Type:         category,
		Title:        title,
		Body:         body,
		Data:         string(encoded),
		SentToTokens: attempted,
		Successful:   sendErr == nil,
	}
	if sendErr != nil {
		row.ErrorMessage = sendErr.Error()
	}

	if err := svc.DB.WithContext(ctx).Create(&row).Error; err != nil {
		logging.FromContext(ctx).Error("notification_log_write_failed", "user_id", userID, "error", err)
	}
}

func (svc *NotificationService) deactivateDeadTokens(ctx context.Context, kept []models.PushToken, tickets []expo.Ticket) {
	l := logging.FromContext(ctx)
	for i, ticket := range tickets {
		if i >= len(kept) || ticket.Status != "error" || ticket.Details == nil {
			continue
		}
		switch ticket.Details.Error {
		case expo.ErrDeviceNotRegistered, expo.ErrInvalidCredentials:
			err := svc.DB.WithContext(ctx).Model(&models.PushToken{}).
				Where("token = ?", kept[i].Token).
				Update("is_active", false).Error
			if err != nil {
				l.Error("push_token_deactivate_failed", "token_id", kept[i].ID, "error", err)
				continue
			}
			l.Warn("push_token_deactivated", "token_id", kept[i].ID, "reason", ticket.Details.Error)
		}
	}
}
