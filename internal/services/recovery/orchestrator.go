package recovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/portalclube/payment-reconciler/internal/config"
	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/metrics"
	"github.com/portalclube/payment-reconciler/internal/services/webhookerr"
)

// Rule thresholds. Counts are per health-check window, not cumulative.
const (
	rateLimitThreshold    = 5
	validationThreshold   = 10
	businessRuleThreshold = 5
	webhookBacklogLimit   = 10
	pendingBacklogLimit   = 25
	errorRateLimit        = 0.5
	minRequestsForRates   = 5
)

// counterWindow accumulates gateway request outcomes between two health
// checks. Drained (and zeroed) by each CheckHealth.
type counterWindow struct {
	success int
	failure int
	byType  map[ports.GatewayErrorType]int
}

func (w *counterWindow) observe(success bool, errType ports.GatewayErrorType) {
	if success {
		w.success++
		return
	}
	w.failure++
	if w.byType == nil {
		w.byType = map[ports.GatewayErrorType]int{}
	}
	w.byType[errType]++
}

func (w *counterWindow) drain() counterWindow {
	out := *w
	*w = counterWindow{}
	return out
}

// Orchestrator periodically observes system health, maps symptoms to
// remediation through a small rule engine, and executes the automated part of
// that remediation. All state is in-memory; a restart starts observing fresh.
type Orchestrator struct {
	cfg           config.RecoveryConfig
	gateway       ports.PaymentGateway
	db            ports.DBPort
	pending       ports.PendingRepository
	cobrancas     ports.CobrancaRepository
	webhookErrors ports.WebhookErrorRepository
	ledger        *webhookerr.Ledger
	clock         Clock
	logger        *zap.Logger
	metrics       *metrics.Metrics
	limiter       *rate.Limiter

	mu           sync.Mutex
	ring         *snapshotRing
	window       counterWindow
	lastCheck    time.Time
	alerts       []models.Alert
	actions      map[string]*models.RecoveryAction // keyed by type + reason
	actionsOrder []string
}

// NewOrchestrator creates the recovery orchestrator
func NewOrchestrator(
	cfg config.RecoveryConfig,
	gateway ports.PaymentGateway,
	db ports.DBPort,
	pending ports.PendingRepository,
	cobrancas ports.CobrancaRepository,
	webhookErrors ports.WebhookErrorRepository,
	ledger *webhookerr.Ledger,
	clock Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if clock == nil {
		clock = NewRealClock()
	}
	interval := cfg.ActionInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Orchestrator{
		cfg:           cfg,
		gateway:       gateway,
		db:            db,
		pending:       pending,
		cobrancas:     cobrancas,
		webhookErrors: webhookErrors,
		ledger:        ledger,
		clock:         clock,
		logger:        logger,
		metrics:       m,
		limiter:       rate.NewLimiter(rate.Every(interval), 1),
		ring:          newSnapshotRing(cfg.SnapshotBuffer),
		actions:       map[string]*models.RecoveryAction{},
	}
}

// ObserveGatewayRequest feeds the rule engine with real gateway outcomes. It
// is wired as the gateway client's request observer.
func (o *Orchestrator) ObserveGatewayRequest(success bool, errType ports.GatewayErrorType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.window.observe(success, errType)
}

// CheckHealth takes one snapshot: probes the gateway and the database, counts
// staged work, and derives rates from the request window since the previous
// check. The snapshot is appended to the ring and run through the rule engine.
func (o *Orchestrator) CheckHealth(ctx context.Context) (*models.SystemHealthSnapshot, []*models.RecoveryAction) {
	now := o.clock.Now()
	snap := models.SystemHealthSnapshot{Timestamp: now}

	probe, probeErr := o.gateway.TestConnection(ctx)
	if probe != nil {
		snap.GatewayConnected = probe.Success
		snap.GatewayLatency = probe.Latency
		o.metrics.GatewayProbeDuration.Observe(probe.Latency.Seconds())
	}
	if probeErr != nil {
		o.logger.Warn("gateway probe failed", zap.Error(probeErr))
	}

	dbStart := time.Now()
	if err := o.db.Ping(ctx); err != nil {
		o.logger.Warn("database ping failed", zap.Error(err))
	} else {
		snap.DatabaseConnected = true
	}
	snap.DatabaseLatency = time.Since(dbStart)

	snap.PendingPayments = int(o.countPending(ctx))
	if n, err := o.webhookErrors.CountUnresolved(ctx); err != nil {
		o.logger.Warn("unresolved webhook count failed", zap.Error(err))
	} else {
		snap.QueueDepth = int(n)
	}

	o.mu.Lock()
	window := o.window.drain()
	elapsed := now.Sub(o.lastCheck)
	o.lastCheck = now
	o.mu.Unlock()

	total := window.success + window.failure
	if total >= minRequestsForRates {
		snap.SuccessRate = float64(window.success) / float64(total)
		snap.ErrorRate = float64(window.failure) / float64(total)
	} else {
		// Too few requests to judge; report a healthy baseline.
		snap.SuccessRate = 1
	}
	if elapsed > 0 && elapsed < 24*time.Hour {
		snap.Throughput = float64(total) / elapsed.Minutes()
	}

	newActions := o.evaluate(&snap, window)

	o.mu.Lock()
	o.ring.add(snap)
	o.mu.Unlock()

	o.logger.Info("health check completed",
		zap.Bool("gateway_connected", snap.GatewayConnected),
		zap.Bool("database_connected", snap.DatabaseConnected),
		zap.Float64("error_rate", snap.ErrorRate),
		zap.Int("pending_payments", snap.PendingPayments),
		zap.Int("webhook_backlog", snap.QueueDepth),
		zap.Int("new_actions", len(newActions)),
	)
	return &snap, newActions
}

func (o *Orchestrator) countPending(ctx context.Context) int64 {
	var total int64
	for _, variant := range []models.PendingVariant{models.VariantSubscription, models.VariantCompletion} {
		n, err := o.pending.CountByStatus(ctx, variant, models.PendingStatusPending)
		if err != nil {
			o.logger.Warn("pending count failed", zap.String("variant", string(variant)), zap.Error(err))
			continue
		}
		total += n
	}
	return total
}

// evaluate runs the rule engine over one snapshot, raising alerts and
// registering actions. Returns only the automated actions created by this
// pass; existing actions keep their attempt history.
func (o *Orchestrator) evaluate(snap *models.SystemHealthSnapshot, window counterWindow) []*models.RecoveryAction {
	o.mu.Lock()
	defer o.mu.Unlock()

	var created []*models.RecoveryAction
	propose := func(t models.ActionType, p models.ActionPriority, automated bool, reason string) {
		if a := o.registerAction(t, p, automated, reason, snap.Timestamp); a != nil && a.Automated {
			created = append(created, a)
		}
	}

	if !snap.GatewayConnected {
		o.raiseAlert("gateway_disconnected", models.SeverityCritical,
			"Gateway Asaas inacessível",
			"o probe de conectividade falhou; verificações e transferências vão falhar", snap.Timestamp)
		propose(models.ActionRefreshData, models.PriorityHigh, true, "gateway probe failed")
	}
	if !snap.DatabaseConnected {
		o.raiseAlert("database_disconnected", models.SeverityCritical,
			"Banco de dados inacessível",
			"o ping ao PostgreSQL falhou; nenhuma remediação automática é possível", snap.Timestamp)
	}

	if snap.ErrorRate > errorRateLimit {
		o.raiseAlert("error_rate_high", models.SeverityHigh,
			"Taxa de erro elevada no gateway",
			fmt.Sprintf("%.0f%% das requisições à API falharam na última janela", snap.ErrorRate*100), snap.Timestamp)
	}

	if window.byType[ports.GatewayErrorRateLimit] >= rateLimitThreshold {
		o.raiseAlert("rate_limited", models.SeverityMedium,
			"Gateway limitando requisições",
			"respostas 429 acumuladas; os pagamentos transitórios serão reverificados", snap.Timestamp)
		propose(models.ActionRetryPayment, models.PriorityMedium, true, "rate limit responses accumulated")
	}
	if window.byType[ports.GatewayErrorAuthentication] > 0 {
		o.raiseAlert("authentication_errors", models.SeverityHigh,
			"Falhas de autenticação no gateway",
			"a API rejeitou a credencial; rotacione a chave de acesso", snap.Timestamp)
		propose(models.ActionRefreshData, models.PriorityHigh, false, "gateway rejected credentials")
	}
	if window.byType[ports.GatewayErrorValidation] >= validationThreshold {
		o.raiseAlert("validation_errors", models.SeverityMedium,
			"Falhas de validação recorrentes",
			"muitas requisições rejeitadas por dados inválidos; verifique a integridade dos cadastros", snap.Timestamp)
		propose(models.ActionRefreshData, models.PriorityMedium, false, "recurring validation rejections")
	}
	if window.byType[ports.GatewayErrorBusinessRule] >= businessRuleThreshold {
		o.raiseAlert("business_rule_errors", models.SeverityLow,
			"Regras de negócio bloqueando operações",
			"o gateway recusou operações por regra de negócio; avalie um método alternativo", snap.Timestamp)
		propose(models.ActionAlternativeMethod, models.PriorityLow, false, "business rules blocking operations")
	}

	if snap.QueueDepth >= webhookBacklogLimit {
		o.raiseAlert("webhook_backlog", models.SeverityMedium,
			"Fila de webhooks com erro crescendo",
			fmt.Sprintf("%d notificações não resolvidas aguardam reprocessamento", snap.QueueDepth), snap.Timestamp)
		propose(models.ActionResendWebhook, models.PriorityMedium, true, "unresolved webhook backlog")
	}
	if snap.PendingPayments >= pendingBacklogLimit {
		o.raiseAlert("pending_backlog", models.SeverityMedium,
			"Acúmulo de transações pendentes",
			fmt.Sprintf("%d registros pendentes aguardam conclusão", snap.PendingPayments), snap.Timestamp)
		propose(models.ActionRetryPayment, models.PriorityMedium, true, "pending record backlog")
	}

	return created
}

// registerAction creates an action unless one with the same type and reason is
// already active; repeats keep their attempt history. Returns the action only
// when newly created.
func (o *Orchestrator) registerAction(t models.ActionType, p models.ActionPriority, automated bool, reason string, now time.Time) *models.RecoveryAction {
	key := string(t) + "|" + reason
	if _, exists := o.actions[key]; exists {
		return nil
	}
	action := &models.RecoveryAction{
		ID:          uuid.New().String(),
		Type:        t,
		Priority:    p,
		Automated:   automated,
		Reason:      reason,
		MaxAttempts: o.cfg.MaxActionAttempts,
		CreatedAt:   now,
	}
	o.actions[key] = action
	o.actionsOrder = append(o.actionsOrder, key)
	o.logger.Info("recovery action registered",
		zap.String("action_id", action.ID),
		zap.String("type", string(t)),
		zap.String("priority", string(p)),
		zap.Bool("automated", automated),
		zap.String("reason", reason),
	)
	return action
}

func (o *Orchestrator) raiseAlert(alertType string, severity models.AlertSeverity, title, message string, now time.Time) {
	for i := range o.alerts {
		if o.alerts[i].Type == alertType && !o.alerts[i].Resolved {
			return
		}
	}
	o.alerts = append(o.alerts, models.Alert{
		ID:        uuid.New().String(),
		Type:      alertType,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: now,
	})
	o.logger.Warn("alert raised",
		zap.String("alert_type", alertType),
		zap.String("severity", string(severity)),
		zap.String("title", title),
	)
}

// ExecuteAction runs one remediation. Every invocation consumes an attempt;
// an action at its attempt ceiling is refused rather than run. A successful
// action leaves the active set.
func (o *Orchestrator) ExecuteAction(ctx context.Context, id string) bool {
	o.mu.Lock()
	var key string
	var action *models.RecoveryAction
	for k, a := range o.actions {
		if a.ID == id {
			key, action = k, a
			break
		}
	}
	if action == nil {
		o.mu.Unlock()
		return false
	}
	if action.Attempts >= action.MaxAttempts {
		o.mu.Unlock()
		o.logger.Warn("recovery action exhausted, refusing execution",
			zap.String("action_id", action.ID),
			zap.String("type", string(action.Type)),
			zap.Int("attempts", action.Attempts),
		)
		o.metrics.RecoveryActions.WithLabelValues(string(action.Type), "exhausted").Inc()
		return false
	}
	now := o.clock.Now()
	action.Attempts++
	action.LastAttempt = &now
	o.mu.Unlock()

	success := o.run(ctx, action)

	outcome := "failure"
	if success {
		outcome = "success"
		o.mu.Lock()
		delete(o.actions, key)
		o.actionsOrder = removeKey(o.actionsOrder, key)
		o.mu.Unlock()
	}
	o.metrics.RecoveryActions.WithLabelValues(string(action.Type), outcome).Inc()
	o.logger.Info("recovery action executed",
		zap.String("action_id", action.ID),
		zap.String("type", string(action.Type)),
		zap.String("outcome", outcome),
		zap.Int("attempts", action.Attempts),
	)
	return success
}

// run dispatches an action to its remediation routine.
func (o *Orchestrator) run(ctx context.Context, action *models.RecoveryAction) bool {
	switch action.Type {
	case models.ActionRefreshData:
		probe, err := o.gateway.TestConnection(ctx)
		if err != nil || probe == nil || !probe.Success {
			return false
		}
		return o.db.Ping(ctx) == nil
	case models.ActionRetryPayment:
		updated, err := o.RetryFailedPayments(ctx)
		if err != nil {
			o.logger.Warn("retry payment action failed", zap.Error(err))
			return false
		}
		o.logger.Info("transient payments reverified", zap.Int("updated", updated))
		return true
	case models.ActionResendWebhook:
		resolved, err := o.ReprocessPendingWebhooks(ctx)
		if err != nil {
			o.logger.Warn("webhook reprocess action failed", zap.Error(err))
			return false
		}
		return resolved > 0
	case models.ActionAlternativeMethod:
		// Nothing the system can do unattended; an operator must offer the
		// customer another payment method.
		o.logger.Warn("alternative method action requires operator follow-up",
			zap.String("action_id", action.ID),
			zap.String("reason", action.Reason),
		)
		return false
	default:
		return false
	}
}

// RunAutomatic executes the active automated actions, highest priority first,
// spacing executions with the configured interval.
func (o *Orchestrator) RunAutomatic(ctx context.Context) int {
	o.mu.Lock()
	batch := make([]*models.RecoveryAction, 0, len(o.actions))
	for _, key := range o.actionsOrder {
		if a := o.actions[key]; a != nil && a.Automated && a.Attempts < a.MaxAttempts {
			batch = append(batch, a)
		}
	}
	o.mu.Unlock()

	sort.SliceStable(batch, func(i, j int) bool {
		return priorityRank(batch[i].Priority) > priorityRank(batch[j].Priority)
	})

	executed := 0
	for _, action := range batch {
		if err := o.limiter.Wait(ctx); err != nil {
			return executed
		}
		o.ExecuteAction(ctx, action.ID)
		executed++
	}
	return executed
}

func priorityRank(p models.ActionPriority) int {
	switch p {
	case models.PriorityHigh:
		return 3
	case models.PriorityMedium:
		return 2
	case models.PriorityLow:
		return 1
	}
	return 0
}

// RetryFailedPayments reverifies transient charges against the gateway and
// persists status changes. Returns how many charges actually changed.
func (o *Orchestrator) RetryFailedPayments(ctx context.Context) (int, error) {
	since := o.clock.Now().Add(-o.cfg.RetryWindow)
	charges, err := o.cobrancas.ListTransient(ctx, since, o.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list transient charges: %w", err)
	}

	updated := 0
	for _, charge := range charges {
		payment, err := o.gateway.GetPayment(ctx, charge.AsaasPaymentID)
		if err != nil {
			o.logger.Warn("transient charge reverification failed",
				zap.String("cobranca_id", charge.ID),
				zap.String("asaas_payment_id", charge.AsaasPaymentID),
				zap.Error(err),
			)
			continue
		}
		status := models.CobrancaStatusFromGateway(payment.Status)
		if status == "" || status == charge.Status {
			continue
		}
		if err := o.cobrancas.UpdateStatus(ctx, charge.ID, status); err != nil {
			o.logger.Error("transient charge status update failed",
				zap.String("cobranca_id", charge.ID),
				zap.Error(err),
			)
			continue
		}
		updated++
		o.logger.Info("transient charge reconciled",
			zap.String("cobranca_id", charge.ID),
			zap.String("from", string(charge.Status)),
			zap.String("to", string(status)),
		)
	}
	return updated, nil
}

// ReprocessPendingWebhooks retries unresolved webhook errors through the
// ledger. Returns how many entries were resolved.
func (o *Orchestrator) ReprocessPendingWebhooks(ctx context.Context) (int, error) {
	since := o.clock.Now().Add(-o.cfg.RetryWindow)
	entries, err := o.ledger.ListUnresolved(ctx, since, o.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unresolved webhook errors: %w", err)
	}

	resolved := 0
	for _, entry := range entries {
		ok, err := o.ledger.Retry(ctx, entry.ID)
		if err != nil {
			o.logger.Error("webhook reprocess failed",
				zap.String("webhook_error_id", entry.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

// LatestSnapshot returns the most recent health observation, if any.
func (o *Orchestrator) LatestSnapshot() (models.SystemHealthSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ring.len() == 0 {
		return models.SystemHealthSnapshot{}, false
	}
	return o.ring.last(1)[0], true
}

// Snapshots returns up to n recent observations, oldest first.
func (o *Orchestrator) Snapshots(n int) []models.SystemHealthSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ring.last(n)
}

// Alerts returns a copy of every alert raised since process start.
func (o *Orchestrator) Alerts() []models.Alert {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Alert, len(o.alerts))
	copy(out, o.alerts)
	return out
}

// Actions returns copies of the active recovery actions, oldest first.
func (o *Orchestrator) Actions() []models.RecoveryAction {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.RecoveryAction, 0, len(o.actions))
	for _, key := range o.actionsOrder {
		if a := o.actions[key]; a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
