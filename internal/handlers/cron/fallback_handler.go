package cron

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/config"
	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/services/fallback"
)

// FallbackHandler handles cron job endpoints for the pending-record store
type FallbackHandler struct {
	store      *fallback.Store
	cfg        config.FallbackConfig
	logger     *zap.Logger
	cronSecret string
}

// NewFallbackHandler creates a new fallback cron handler
func NewFallbackHandler(store *fallback.Store, cfg config.FallbackConfig, logger *zap.Logger, cronSecret string) *FallbackHandler {
	return &FallbackHandler{
		store:      store,
		cfg:        cfg,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// RetryPendingRequest represents the request body for a retry batch
type RetryPendingRequest struct {
	Variant   *string `json:"variant"`    // Optional: subscription or completion, defaults to both
	BatchSize *int32  `json:"batch_size"` // Optional: defaults to configuration
}

// RetryPendingResponse represents the response from a retry batch
type RetryPendingResponse struct {
	Success      bool                    `json:"success"`
	Processed    int                     `json:"processed"`
	SuccessCount int                     `json:"success_count"`
	FailureCount int                     `json:"failure_count"`
	Outcomes     []fallback.RetryOutcome `json:"outcomes,omitempty"`
	ProcessedAt  string                  `json:"processed_at"`
}

// RetryPending handles the POST /cron/retry-pending endpoint. It is called by
// the external scheduler to re-attempt staged side effects.
func (h *FallbackHandler) RetryPending(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Retry pending cron job triggered",
		zap.String("remote_addr", r.RemoteAddr),
	)

	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		h.logger.Warn("Unauthorized cron request", zap.String("remote_addr", r.RemoteAddr))
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := h.parseRetryRequest(r)

	variants := []models.PendingVariant{models.VariantSubscription, models.VariantCompletion}
	if req.Variant != nil {
		v := models.PendingVariant(*req.Variant)
		if v != models.VariantSubscription && v != models.VariantCompletion {
			respondError(w, h.logger, http.StatusBadRequest, "variant must be subscription or completion")
			return
		}
		variants = []models.PendingVariant{v}
	}

	batchSize := h.cfg.BatchSize
	if req.BatchSize != nil && *req.BatchSize > 0 && *req.BatchSize <= 500 {
		batchSize = *req.BatchSize
	}

	var outcomes []fallback.RetryOutcome
	for _, variant := range variants {
		batch, err := h.store.RetryAll(r.Context(), variant, h.cfg.MaxAttempts, h.cfg.MinRetryAge, batchSize)
		if err != nil {
			respondError(w, h.logger, http.StatusInternalServerError, err.Error())
			return
		}
		outcomes = append(outcomes, batch...)
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}

	resp := RetryPendingResponse{
		Success:      succeeded == len(outcomes),
		Processed:    len(outcomes),
		SuccessCount: succeeded,
		FailureCount: len(outcomes) - succeeded,
		Outcomes:     outcomes,
		ProcessedAt:  time.Now().Format(time.RFC3339),
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusPartialContent
	}
	respondJSON(w, h.logger, status, resp)
}

// parseRetryRequest decodes the optional request body. Schedulers usually
// POST with no body at all, so decode failures just mean defaults.
func (h *FallbackHandler) parseRetryRequest(r *http.Request) RetryPendingRequest {
	var req RetryPendingRequest
	if r.Body == nil {
		return req
	}
	if err := decodeBody(r, &req); err != nil {
		return RetryPendingRequest{}
	}
	return req
}

// ManualCompleteRequest represents the request body for a manual completion
type ManualCompleteRequest struct {
	RecordID string `json:"record_id"`
}

// ManualComplete handles the POST /cron/manual-complete endpoint, letting an
// operator force one pending record through its completion routine.
func (h *FallbackHandler) ManualComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ManualCompleteRequest
	if err := decodeBody(r, &req); err != nil || req.RecordID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "record_id is required")
		return
	}

	result := h.store.ManuallyComplete(r.Context(), req.RecordID)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, h.logger, status, result)
}

// MarkFailedRequest represents the request body for the terminal transition
type MarkFailedRequest struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// MarkFailed handles the POST /cron/mark-failed endpoint. A failed record
// leaves the retry rotation for good.
func (h *FallbackHandler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req MarkFailedRequest
	if err := decodeBody(r, &req); err != nil || req.RecordID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "record_id is required")
		return
	}

	if err := h.store.MarkFailed(r.Context(), req.RecordID, req.Reason); err != nil {
		respondError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"success": true})
}

// Stats handles GET /cron/stats for monitoring the fallback store
func (h *FallbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !authenticateRequest(r, h.cronSecret) {
		respondError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats := h.store.Stats(r.Context())

	resp := map[string]interface{}{
		"success": true,
		"stats": map[string]interface{}{
			"pending_subscriptions": stats.PendingSubscriptions,
			"pending_completions":   stats.PendingCompletions,
			"total_retries":         stats.TotalRetries,
			"success_rate":          stats.SuccessRate,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if stats.LastProcessed != nil {
		resp["stats"].(map[string]interface{})["last_processed"] = stats.LastProcessed.Format(time.RFC3339)
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}
