package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/shaiso/Remora/internal/client"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/retry"
	"github.com/shaiso/Remora/internal/rpc"
	"github.com/shaiso/Remora/internal/telemetry"
)

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ClientConfig — конфигурация Client.
type ClientConfig struct {
	// BaseURL — адрес воркера, например http://worker-1:8080.
	BaseURL string

	// Timeout — таймаут одного HTTP-запроса (0 — без таймаута).
	Timeout time.Duration

	// RequestsPerSecond ограничивает темп запросов (0 — без ограничения).
	RequestsPerSecond float64

	// Burst — размер пачки для limiter (default: 1).
	Burst int

	// HTTPClient переопределяет http.Client (для тестов).
	HTTPClient *http.Client
}

// Client — HTTP-клиент воркера.
//
// Сам Client реализует contracts.CapabilitiesService; клиенты протоколов
// выполнения скриптов возвращают V1, V2 и V3.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient создаёт клиент воркера.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// BaseURL возвращает адрес воркера.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Services возвращает набор клиентов для client.New.
func (c *Client) Services() client.Services {
	return client.Services{
		V1:           c.V1(),
		V2:           c.V2(),
		V3:           c.V3(),
		Capabilities: c,
	}
}

// GetCapabilities реализует contracts.CapabilitiesService.
func (c *Client) GetCapabilities(ctx context.Context) (contracts.CapabilitiesResponse, error) {
	var resp contracts.CapabilitiesResponse
	err := c.do(ctx, http.MethodGet, pathCapabilities, nil, &resp)
	return resp, err
}

// --- Version 1 ---

// V1 возвращает клиент ScriptServiceV1.
func (c *Client) V1() contracts.ScriptServiceV1 { return v1Client{c} }

type v1Client struct{ c *Client }

func (v v1Client) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV1) (contracts.ScriptStatusResponseV1, error) {
	return post[contracts.ScriptStatusResponseV1](ctx, v.c, pathV1Start, cmd)
}

func (v v1Client) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV1) (contracts.ScriptStatusResponseV1, error) {
	return post[contracts.ScriptStatusResponseV1](ctx, v.c, pathV1Status, req)
}

func (v v1Client) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV1) (contracts.ScriptStatusResponseV1, error) {
	return post[contracts.ScriptStatusResponseV1](ctx, v.c, pathV1Complete, cmd)
}

// --- Version 2 ---

// V2 возвращает клиент ScriptServiceV2.
func (c *Client) V2() contracts.ScriptServiceV2 { return v2Client{c} }

type v2Client struct{ c *Client }

func (v v2Client) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV2) (contracts.ScriptStatusResponseV2, error) {
	return post[contracts.ScriptStatusResponseV2](ctx, v.c, pathV2Start, cmd)
}

func (v v2Client) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV2) (contracts.ScriptStatusResponseV2, error) {
	return post[contracts.ScriptStatusResponseV2](ctx, v.c, pathV2Status, req)
}

func (v v2Client) CancelScript(ctx context.Context, cmd contracts.CancelScriptCommandV2) (contracts.ScriptStatusResponseV2, error) {
	return post[contracts.ScriptStatusResponseV2](ctx, v.c, pathV2Cancel, cmd)
}

func (v v2Client) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV2) error {
	return v.c.do(ctx, http.MethodPost, pathV2Complete, cmd, nil)
}

// --- Version 3 ---

// V3 возвращает клиент ScriptServiceV3.
func (c *Client) V3() contracts.ScriptServiceV3 { return v3Client{c} }

type v3Client struct{ c *Client }

func (v v3Client) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV3) (contracts.ScriptStatusResponseV3, error) {
	return post[contracts.ScriptStatusResponseV3](ctx, v.c, pathV3Start, cmd)
}

func (v v3Client) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV3) (contracts.ScriptStatusResponseV3, error) {
	return post[contracts.ScriptStatusResponseV3](ctx, v.c, pathV3Status, req)
}

func (v v3Client) CancelScript(ctx context.Context, cmd contracts.CancelScriptCommandV3) (contracts.ScriptStatusResponseV3, error) {
	return post[contracts.ScriptStatusResponseV3](ctx, v.c, pathV3Cancel, cmd)
}

func (v v3Client) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV3) error {
	return v.c.do(ctx, http.MethodPost, pathV3Complete, cmd, nil)
}

// --- HTTP helpers ---

func post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var result T
	err := c.do(ctx, http.MethodPost, path, body, &result)
	return result, err
}

// do выполняет запрос. Если ctx отменён после записи запроса в соединение,
// ошибка оборачивается в contracts.ErrCancelledInFlight.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", contracts.ErrServiceUnavailable, err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	var wrote atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { wrote.Store(true) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, c.baseURL+path, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, &wrote, err)
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return c.transportError(ctx, &wrote, fmt.Errorf("%w: %v", contracts.ErrMalformedResponse, err))
	}
	if err := json.Unmarshal(dr.Data, result); err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, wrote *atomic.Bool, err error) error {
	ctxErr := ctx.Err()
	switch {
	case ctxErr != nil && wrote.Load():
		return fmt.Errorf("%w: %w", contracts.ErrCancelledInFlight, ctxErr)
	case ctxErr != nil:
		return ctxErr
	default:
		return fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
}

func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: HTTP %d", contracts.ErrServiceUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("%w: HTTP %d", contracts.ErrMalformedResponse, resp.StatusCode)
	}

	remote := &RemoteError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
	if remote.Code == ErrCodeBadRequest {
		return retry.Permanent(remote)
	}
	return remote
}

// NewScriptClient создаёт client.Client, работающий с воркером по HTTP.
func NewScriptClient(cfg ClientConfig, opts client.Options, observer rpc.ClientObserver, logger *slog.Logger) (*client.Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: worker url", client.ErrMissingService)
	}

	if logger != nil {
		logger = telemetry.ForWorker(logger, cfg.BaseURL)
	}

	return client.New(client.Config{
		Services: NewClient(cfg).Services(),
		Options:  opts,
		Observer: observer,
		Logger:   logger,
	})
}
