package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/services/webhookerr"
)

const maxPayloadBytes = 1 << 20

// Handler receives gateway notifications. A processing failure is recorded in
// the error ledger with the full payload, and the gateway still gets a 200 so
// it does not retry what we already captured.
type Handler struct {
	processor   ports.WebhookProcessor
	ledger      *webhookerr.Ledger
	accessToken string
	logger      *zap.Logger
}

// NewHandler creates the webhook ingress handler
func NewHandler(processor ports.WebhookProcessor, ledger *webhookerr.Ledger, accessToken string, logger *zap.Logger) *Handler {
	return &Handler{
		processor:   processor,
		ledger:      ledger,
		accessToken: accessToken,
		logger:      logger,
	}
}

// Receive handles POST /webhooks/asaas
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.accessToken != "" && r.Header.Get("asaas-access-token") != h.accessToken {
		h.logger.Warn("webhook with bad access token", zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	procErr := h.process(r.Context(), payload)
	if procErr != nil {
		paymentID := extractPaymentID(payload)
		if _, recErr := h.ledger.Record(r.Context(), paymentID, procErr, string(debug.Stack()), payload); recErr != nil {
			// Ledger write failed too; let the gateway redeliver.
			h.logger.Error("webhook failure could not be recorded",
				zap.Error(recErr),
				zap.String("payment_id", paymentID),
			)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// process shields the caller from panics in the processing routine; a panic
// becomes a recorded error like any other failure.
func (h *Handler) process(ctx context.Context, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webhook processing panic: %v", r)
		}
	}()
	return h.processor.Process(ctx, payload)
}

func extractPaymentID(payload []byte) string {
	var n struct {
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(payload, &n); err != nil {
		return ""
	}
	return n.Payment.ID
}
