package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/orders"
	"bindery/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/orders", authMiddleware(token, srv.handleOrders))
	mux.HandleFunc("/api/orders/", authMiddleware(token, srv.handleOrder))
	mux.HandleFunc("/api/webhooks/payment", authMiddleware(token, srv.handlePaymentWebhook))
	mux.HandleFunc("/api/reconcile", authMiddleware(token, srv.handleReconcile))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// PDF generation runs inside the webhook request.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type orderView struct {
	ID            string `json:"id"`
	BookID        string `json:"book_id"`
	Status        string `json:"status"`
	VendorJobID   string `json:"vendor_job_id,omitempty"`
	VendorStatus  string `json:"vendor_status,omitempty"`
	TrackingNum   string `json:"tracking_number,omitempty"`
	TrackingURL   string `json:"tracking_url,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func newOrderView(order *orders.Order) orderView {
	return orderView{
		ID:            order.ID,
		BookID:        order.BookID,
		Status:        string(order.Status),
		VendorJobID:   order.VendorJobID,
		VendorStatus:  order.VendorStatus,
		TrackingNum:   order.TrackingNum,
		TrackingURL:   order.TrackingURL,
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     order.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":   status.Running,
		"orders":    status.Orders,
		"database":  status.OrdersDBPath,
		"lock_file": status.LockFilePath,
	})
}

func (s *apiServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var statuses []orders.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			status, ok := orders.ParseStatus(value)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown status "+value)
				return
			}
			statuses = append(statuses, status)
		}
	}

	list, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]orderView, 0, len(list))
	for _, order := range list {
		views = append(views, newOrderView(order))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

// handleOrder serves GET /api/orders/{id} and POST /api/orders/{id}/retry.
func (s *apiServer) handleOrder(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "order id required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		order, err := s.daemon.store.GetByID(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if order == nil {
			s.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.writeJSON(w, http.StatusOK, newOrderView(order))
	case action == "retry" && r.Method == http.MethodPost:
		if err := s.daemon.orch.Retry(r.Context(), id); err != nil {
			s.writeOrchestratorError(w, err)
			return
		}
		order, err := s.daemon.store.GetByID(r.Context(), id)
		if err != nil || order == nil {
			s.writeError(w, http.StatusInternalServerError, "order state unavailable after retry")
			return
		}
		s.writeJSON(w, http.StatusOK, newOrderView(order))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePaymentWebhook runs the full generation and submission pipeline in
// the request so the payments collaborator observes failure directly.
func (s *apiServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		s.writeError(w, http.StatusBadRequest, "order_id required")
		return
	}

	if err := s.daemon.orch.HandlePaymentConfirmed(r.Context(), payload.OrderID); err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	order, err := s.daemon.store.GetByID(r.Context(), payload.OrderID)
	if err != nil || order == nil {
		s.writeError(w, http.StatusInternalServerError, "order state unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, newOrderView(order))
}

func (s *apiServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.daemon.orch.ReconcileSweep(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"checked": result.Checked,
		"failed":  result.Failed,
	})
}

func (s *apiServer) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
