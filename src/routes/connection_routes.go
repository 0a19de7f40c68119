package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/controllers"
)

// ConnectionRoutes sets up routes for sending, answering, withdrawing and listing connection requests
func ConnectionRoutes(api fiber.Router, h *controllers.ConnectionController) {
	connection := api.Group("/connections")

	connection.Post("/request/:userId", h.SendConnectionRequest)
	connection.Put("/accept/:requestId", h.AcceptConnectionRequest)
	connection.Put("/reject/:requestId", h.RejectConnectionRequest)
	connection.Put("/withdraw/:requestId", h.WithdrawConnectionRequest)
	connection.Get("/requests", h.GetConnectionRequests)
	connection.Get("/status/:userId", h.GetConnectionStatus)
	connection.Get("/", h.GetUserConnections)
}
