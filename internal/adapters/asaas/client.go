package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	adapterports "github.com/portalclube/payment-reconciler/internal/adapters/ports"
	"github.com/portalclube/payment-reconciler/internal/config"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// RequestObserver is notified of every gateway round trip: success, or the
// gateway's own classification of the failure. The recovery orchestrator uses
// it to feed its rule engine with real figures instead of synthetic load.
type RequestObserver func(success bool, errType ports.GatewayErrorType)

// Client implements ports.PaymentGateway against the Asaas REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient adapterports.HTTPClient
	limiter    *rate.Limiter
	logger     *zap.Logger
	observer   RequestObserver
}

// NewClient creates a new Asaas gateway client
func NewClient(cfg config.AsaasConfig, httpClient adapterports.HTTPClient, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		// Asaas rejects bursts well below this; 10 rps keeps transfer batches
		// under the documented account limit.
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		logger:  logger,
	}
}

// SetObserver registers a callback receiving every request outcome.
func (c *Client) SetObserver(fn RequestObserver) {
	c.observer = fn
}

type transferRequest struct {
	Value    decimal.Decimal `json:"value"`
	WalletID string          `json:"walletId"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type paymentResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Value  decimal.Decimal `json:"value"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// CreateTransfer creates a value transfer tied to a payment
func (c *Client) CreateTransfer(ctx context.Context, req *ports.TransferRequest) (*ports.TransferResult, error) {
	body, err := json.Marshal(transferRequest{
		Value:    req.Amount,
		WalletID: req.WalletID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transfer request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/transfers", body)
	if err != nil {
		return nil, err
	}

	var resp transferResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse transfer response: %w", err)
	}

	c.logger.Info("transfer created",
		zap.String("transfer_id", resp.ID),
		zap.String("payment_id", req.PaymentID),
		zap.String("wallet_id", req.WalletID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)

	return &ports.TransferResult{ID: resp.ID, Status: resp.Status}, nil
}

// GetPayment queries the current status of a payment
func (c *Client) GetPayment(ctx context.Context, externalID string) (*ports.PaymentStatus, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/payments/"+externalID, nil)
	if err != nil {
		return nil, err
	}

	var resp paymentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse payment response: %w", err)
	}

	return &ports.PaymentStatus{ID: resp.ID, Status: resp.Status, Value: resp.Value}, nil
}

// TestConnection performs a lightweight connectivity probe
func (c *Client) TestConnection(ctx context.Context) (*ports.ConnectionResult, error) {
	start := time.Now()
	_, err := c.do(ctx, http.MethodGet, "/finance/balance", nil)
	latency := time.Since(start)
	if err != nil {
		return &ports.ConnectionResult{Success: false, Latency: latency}, err
	}
	return &ports.ConnectionResult{Success: true, Latency: latency}, nil
}

// do executes one request against the API, classifying failures with the
// gateway's own taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gwErr := &ports.GatewayError{
			Type:    ports.GatewayErrorNetwork,
			Message: err.Error(),
		}
		c.observe(gwErr)
		return nil, gwErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if c.observer != nil {
			c.observer(true, "")
		}
		return respBody, nil
	}

	gwErr := c.classify(resp.StatusCode, respBody)
	c.observe(gwErr)
	c.logger.Warn("Asaas API request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.String("error_type", string(gwErr.Type)),
		zap.String("error_code", gwErr.Code),
	)
	return nil, gwErr
}

// classify maps an HTTP failure to the gateway's error taxonomy.
func (c *Client) classify(statusCode int, body []byte) *ports.GatewayError {
	gwErr := &ports.GatewayError{HTTPStatus: statusCode}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Errors) > 0 {
		gwErr.Code = errResp.Errors[0].Code
		gwErr.Message = errResp.Errors[0].Description
	} else {
		gwErr.Message = string(body)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		gwErr.Type = ports.GatewayErrorAuthentication
	case statusCode == http.StatusTooManyRequests:
		gwErr.Type = ports.GatewayErrorRateLimit
	case statusCode == http.StatusBadRequest && gwErr.Code == "invalid_action":
		gwErr.Type = ports.GatewayErrorBusinessRule
	case statusCode >= 400 && statusCode < 500:
		gwErr.Type = ports.GatewayErrorValidation
	default:
		gwErr.Type = ports.GatewayErrorNetwork
	}
	return gwErr
}

func (c *Client) observe(gwErr *ports.GatewayError) {
	if c.observer != nil {
		c.observer(false, gwErr.Type)
	}
}
