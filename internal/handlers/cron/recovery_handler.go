package cron

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/services/recovery"
	"github.com/portalclube/payment-reconciler/internal/services/webhookerr"
)

// RecoveryHandler handles cron job endpoints for the recovery orchestrator
// and the webhook error ledger
type RecoveryHandler struct {
	orch       *recovery.Orchestrator
	ledger     *webhookerr.Ledger
	logger     *zap.Logger
	cronSecret string
}

// NewRecoveryHandler creates a new recovery cron handler
func NewRecoveryHandler(orch *recovery.Orchestrator, ledger *webhookerr.Ledger, logger *zap.Logger, cronSecret string) *RecoveryHandler {
	return &RecoveryHandler{
		orch:       orch,
		ledger:     ledger,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// Health handles GET /cron/health. It reports the latest observation without
// triggering a new one, so monitors stay cheap.
func (h *RecoveryHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.orch.LatestSnapshot()
	if !ok {
		respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
			"status": "starting",
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	status := "healthy"
	if !snap.GatewayConnected || !snap.DatabaseConnected {
		status = "degraded"
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status": status,
		"snapshot": map[string]interface{}{
			"timestamp":          snap.Timestamp.Format(time.RFC3339),
			"gateway_connected":  snap.GatewayConnected,
			"database_connected": snap.DatabaseConnected,
			"gateway_latency_ms": snap.GatewayLatency.Milliseconds(),
			"db_latency_ms":      snap.DatabaseLatency.Milliseconds(),
			"success_rate":       snap.SuccessRate,
			"error_rate":         snap.ErrorRate,
			"throughput_rpm":     snap.Throughput,
			"webhook_backlog":    snap.QueueDepth,
			"pending_payments":   snap.PendingPayments,
		},
		"alerts":  summarizeAlerts(h.orch.Alerts()),
		"actions": summarizeActions(h.orch.Actions()),
	})
}

// CheckNow handles POST /cron/recovery/check, forcing an immediate health
// observation outside the fixed schedule.
func (h *RecoveryHandler) CheckNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	snap, newActions := h.orch.CheckHealth(r.Context())
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":            true,
		"gateway_connected":  snap.GatewayConnected,
		"database_connected": snap.DatabaseConnected,
		"new_actions":        len(newActions),
	})
}

// ExecuteActionRequest represents the request body for a manual execution
type ExecuteActionRequest struct {
	ActionID string `json:"action_id"`
}

// ExecuteAction handles POST /cron/recovery/execute, letting an operator run
// one registered action (manual or automated) immediately.
func (h *RecoveryHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ExecuteActionRequest
	if err := decodeBody(r, &req); err != nil || req.ActionID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "action_id is required")
		return
	}

	success := h.orch.ExecuteAction(r.Context(), req.ActionID)
	status := http.StatusOK
	if !success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, h.logger, status, map[string]interface{}{"success": success})
}

// ReprocessWebhooksResponse represents the response from a reprocess batch
type ReprocessWebhooksResponse struct {
	Success     bool   `json:"success"`
	Resolved    int    `json:"resolved"`
	ProcessedAt string `json:"processed_at"`
}

// ReprocessWebhooks handles POST /cron/reprocess-webhooks, retrying
// unresolved webhook errors in batch.
func (h *RecoveryHandler) ReprocessWebhooks(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Webhook reprocess cron job triggered",
		zap.String("remote_addr", r.RemoteAddr),
	)

	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	resolved, err := h.orch.ReprocessPendingWebhooks(r.Context())
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, ReprocessWebhooksResponse{
		Success:     true,
		Resolved:    resolved,
		ProcessedAt: time.Now().Format(time.RFC3339),
	})
}

// WebhookErrorRequest represents the request body naming one ledger entry
type WebhookErrorRequest struct {
	ID string `json:"id"`
}

// RetryWebhookError handles POST /cron/webhook-errors/retry for one entry.
func (h *RecoveryHandler) RetryWebhookError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req WebhookErrorRequest
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "id is required")
		return
	}

	resolved, err := h.ledger.Retry(r.Context(), req.ID)
	if err != nil {
		respondError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":  true,
		"resolved": resolved,
	})
}

// ResolveWebhookError handles POST /cron/webhook-errors/resolve, marking one
// entry resolved without reprocessing it.
func (h *RecoveryHandler) ResolveWebhookError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req WebhookErrorRequest
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.ledger.MarkResolved(r.Context(), req.ID); err != nil {
		respondError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"success": true})
}

func summarizeAlerts(alerts []models.Alert) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, map[string]interface{}{
			"id":        a.ID,
			"type":      a.Type,
			"severity":  string(a.Severity),
			"title":     a.Title,
			"message":   a.Message,
			"timestamp": a.Timestamp.Format(time.RFC3339),
			"resolved":  a.Resolved,
		})
	}
	return out
}

func summarizeActions(actions []models.RecoveryAction) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(actions))
	for _, a := range actions {
		entry := map[string]interface{}{
			"id":           a.ID,
			"type":         string(a.Type),
			"priority":     string(a.Priority),
			"automated":    a.Automated,
			"reason":       a.Reason,
			"attempts":     a.Attempts,
			"max_attempts": a.MaxAttempts,
			"created_at":   a.CreatedAt.Format(time.RFC3339),
		}
		if a.LastAttempt != nil {
			entry["last_attempt"] = a.LastAttempt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	return out
}
