package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/expo"
	"github.com/unitradehq/unitrade-backend/internal/logging"
	"github.com/unitradehq/unitrade-backend/internal/models"
	"github.com/unitradehq/unitrade-backend/internal/mykafka"
	"github.com/unitradehq/unitrade-backend/internal/service"
)

type PushTokenHandler struct {
	DB         *gorm.DB
	Dispatcher *service.NotificationService
	Producer   *mykafka.Producer
}

type pushTokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SavePushToken upserts on (user, token): re-registering an existing device
// refreshes its type and flips it back to active.
func (h *PushTokenHandler) SavePushToken(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pushtoken.save")

	req, err := requester(c)
	if err != nil {
		return err
	}

	var body struct {
		Token      string `json:"token"`
		DeviceType string `json:"device_type"`
	}
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return c.JSON(http.StatusBadRequest, pushTokenResponse{Success: false, Message: "Token is required"})
	}
	if !expo.IsExpoToken(body.Token) {
		return c.JSON(http.StatusBadRequest, pushTokenResponse{Success: false, Message: "Invalid token format"})
	}
	if body.DeviceType == "" {
		body.DeviceType = models.DeviceTypeAndroid
	}

	var token models.PushToken
	err = h.DB.WithContext(ctx).
		Where("user_id = ? AND token = ?", req.UserID, body.Token).
		First(&token).Error

	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		token = models.PushToken{
			UserID:     req.UserID,
			Token:      body.Token,
			DeviceType: body.DeviceType,
			IsActive:   true,
		}
		if err := h.DB.WithContext(ctx).Create(&token).Error; err != nil {
			l.Error("save_push_token_error", "error", err)
			return c.JSON(http.StatusInternalServerError, pushTokenResponse{Success: false, Message: "failed to save token"})
		}
		created = true
	case err != nil:
		l.Error("save_push_token_error", "error", err)
		return c.JSON(http.StatusInternalServerError, pushTokenResponse{Success: false, Message: "failed to save token"})
	default:
		updates := map[string]interface{}{"device_type": body.DeviceType, "is_active": true}
		if err := h.DB.WithContext(ctx).Model(&token).Updates(updates).Error; err != nil {
			l.Error("save_push_token_error", "error", err)
			return c.JSON(http.StatusInternalServerError, pushTokenResponse{Success: false, Message: "failed to save token"})
		}
	}

	l.Info("push_token_saved", "user_id", req.UserID, "created", created)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Token saved successfully",
		"created": created,
	})
}

func (h *PushTokenHandler) RemovePushToken(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pushtoken.remove")

	req, err := requester(c)
	if err != nil {
		return err
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return c.JSON(http.StatusBadRequest, pushTokenResponse{Success: false, Message: "Token is required"})
	}

	res := h.DB.WithContext(ctx).
		Where("user_id = ? AND token = ?", req.UserID, body.Token).
		Delete(&models.PushToken{})
	if res.Error != nil {
		l.Error("remove_push_token_error", "error", res.Error)
		return c.JSON(http.StatusInternalServerError, pushTokenResponse{Success: false, Message: "failed to remove token"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Token removed successfully",
		"deleted": res.RowsAffected,
	})
}

func (h *PushTokenHandler) SendTestNotification(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := requester(c)
	if err != nil {
		return err
	}

	result := h.Dispatcher.Send(ctx, req.UserID,
		"Test Notification",
		"This is a test notification from UniTrade! 🎉",
		map[string]interface{}{"type": "test"},
		models.NotificationTypeSystem,
	)

	publish(c, h.Producer, mykafka.TopicNotificationEvents, strconv.FormatUint(uint64(req.UserID), 10), map[string]interface{}{
		"type":    "notification_dispatched",
		"kind":    models.NotificationTypeSystem,
		"user_id": req.UserID,
		"success": result.Success,
		"sent_to": result.SentTo,
	})

	return c.JSON(http.StatusOK, result)
}
