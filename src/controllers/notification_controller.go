package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/lib"
	"github.com/theleywin/Collab-Nest/src/middleware"
	"github.com/theleywin/Collab-Nest/src/services"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// GetUserNotifications returns the authenticated user's notifications, newest first
func (h *NotificationController) GetUserNotifications(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	notifications, err := h.notifications.List(c.UserContext(), accountID, c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.JSON(lib.DataResponse(notifications))
}

// GetUnreadCount returns how many of the authenticated user's notifications are unread
func (h *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	count, err := h.notifications.UnreadCount(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(lib.DataResponse(fiber.Map{"count": count}))
}

// MarkNotificationAsRead marks a notification as read for the authenticated user
func (h *NotificationController) MarkNotificationAsRead(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	notification, err := h.notifications.MarkRead(c.UserContext(), accountID, c.Params("notificationId"))
	if err != nil {
		return err
	}
	return c.JSON(lib.DataResponse(notification))
}

// MarkAllNotificationsAsRead marks every notification of the authenticated user as read
func (h *NotificationController) MarkAllNotificationsAsRead(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	if _, err := h.notifications.MarkAllRead(c.UserContext(), accountID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteNotification deletes a notification for the authenticated user
func (h *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	if err := h.notifications.Delete(c.UserContext(), accountID, c.Params("notificationId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
