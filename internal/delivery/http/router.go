package http

import (
	"net/http"

	"online-booking-backend/internal/delivery/http/handler"
	"online-booking-backend/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router          *mux.Router
	authHandler     *handler.AuthHandler
	bookingHandler  *handler.BookingHandler
	chatHandler     *handler.ChatHandler
	auditLogHandler *handler.AuditLogHandler
	authMiddleware  *middleware.AuthMiddleware
	corsMiddleware  *middleware.CORSMiddleware
}

func NewRouter(
	authHandler *handler.AuthHandler,
	bookingHandler *handler.BookingHandler,
	chatHandler *handler.ChatHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:          mux.NewRouter(),
		authHandler:     authHandler,
		bookingHandler:  bookingHandler,
		chatHandler:     chatHandler,
		auditLogHandler: auditLogHandler,
		authMiddleware:  authMiddleware,
		corsMiddleware:  corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", r.authHandler.Register).Methods(http.MethodPost)
	auth.HandleFunc("/login", r.authHandler.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh-token", r.authHandler.RefreshToken).Methods(http.MethodPost)

	// Auth routes (protected)
	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(r.authMiddleware.Authenticate)
	authProtected.HandleFunc("/logout", r.authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", r.authHandler.GetCurrentUser).Methods(http.MethodGet)

	// Booking routes (protected)
	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Use(r.authMiddleware.Authenticate)
	bookings.HandleFunc("", r.bookingHandler.Create).Methods(http.MethodPost)
	bookings.HandleFunc("", r.bookingHandler.List).Methods(http.MethodGet)
	bookings.HandleFunc("/{id}", r.bookingHandler.Get).Methods(http.MethodGet)
	bookings.HandleFunc("/{id}/pay", r.bookingHandler.Pay).Methods(http.MethodPost)
	bookings.HandleFunc("/{id}/reschedule", r.bookingHandler.Reschedule).Methods(http.MethodPut)
	bookings.HandleFunc("/{id}/cancel", r.bookingHandler.Cancel).Methods(http.MethodPost)
	bookings.HandleFunc("/{id}/complete", r.bookingHandler.Complete).Methods(http.MethodPost)

	// Support chat routes (protected)
	chat := api.PathPrefix("/chat").Subrouter()
	chat.Use(r.authMiddleware.Authenticate)
	chat.HandleFunc("/sessions", r.chatHandler.StartSession).Methods(http.MethodPost)
	chat.HandleFunc("/sessions", r.chatHandler.ListSessions).Methods(http.MethodGet)
	chat.HandleFunc("/sessions/{reportId}", r.chatHandler.GetHistory).Methods(http.MethodGet)
	chat.HandleFunc("/sessions/{reportId}/messages", r.chatHandler.SendMessage).Methods(http.MethodPost)
	chat.HandleFunc("/sessions/{reportId}/close", r.chatHandler.CloseSession).Methods(http.MethodPost)
	chat.HandleFunc("/sessions/{reportId}/escalate", r.chatHandler.EscalateSession).Methods(http.MethodPost)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/bookings/{id}", r.bookingHandler.Delete).Methods(http.MethodDelete)
	admin.HandleFunc("/payments/reconcile", r.bookingHandler.Reconcile).Methods(http.MethodPost)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAll).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.Get).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
