package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/controllers"
)

// NotificationRoutes sets up routes for listing, counting, marking as read and deleting notifications
func NotificationRoutes(api fiber.Router, h *controllers.NotificationController) {
	notification := api.Group("/notifications")

	notification.Get("/", h.GetUserNotifications)
	notification.Get("/unread-count", h.GetUnreadCount)
	// static segment first so it is not captured as an id
	notification.Patch("/mark-all-read", h.MarkAllNotificationsAsRead)
	notification.Patch("/:notificationId/read", h.MarkNotificationAsRead)
	notification.Delete("/:notificationId", h.DeleteNotification)
}
