package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.Status)

		// Sessions
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/current", h.GetSession)
		r.Delete("/sessions/current", h.EndSession)
		r.Put("/sessions/current/thinking", h.SetThinkingMode)
		r.Get("/sessions/current/context", h.UserContext)

		// Chat exchanges
		r.Post("/chat", h.SendMessage)
		r.Post("/chat/stream", h.StreamMessage)
		r.Post("/requests/cancel", h.CancelRequests)

		// Chat history
		r.Get("/chats", h.ListChats)
		r.Delete("/chats", h.ClearChats)
		r.Get("/chats/{id}", h.GetChat)
		r.Get("/chats/{id}/context", h.ChatContext)
		r.Delete("/chats/{id}", h.DeleteChat)
		r.Put("/chats/{id}/title", h.RenameChat)

		// Feedback
		r.Post("/feedback", h.SubmitFeedback)
	})
}
