package vastai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

const (
	DefaultBaseURL     = "https://console.vast.ai/api/v0"
	defaultMaxAttempts = 3
	defaultRetryDelay  = 5 * time.Second
	defaultTimeout     = 30 * time.Second
)

// Config configures the Vast.ai inventory client.
type Config struct {
	BaseURL           string
	APIKey            string
	MaxAttempts       int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Provider implements cloudprovider.InventoryProvider for Vast.ai.
type Provider struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

// instancesResponse is the body of GET /instances/.
type instancesResponse struct {
	Instances []instanceRecord `json:"instances"`
}

// instanceRecord carries only the fields the fleet monitor reads. Pointer
// fields distinguish an absent field from a zero value.
type instanceRecord struct {
	ID           json.Number `json:"id"`
	GPUName      *string     `json:"gpu_name"`
	NumGPUs      *int        `json:"num_gpus"`
	DPHTotal     *float64    `json:"dph_total"`
	GPUUtil      *float64    `json:"gpu_util"`
	Label        *string     `json:"label"`
	ActualStatus *string     `json:"actual_status"`
	SSHHost      string      `json:"ssh_host"`
	SSHPort      int         `json:"ssh_port"`
}

// userResponse is the body of GET /users/current/.
type userResponse struct {
	Credit *float64 `json:"credit"`
}

func NewProvider(cfg Config, logger logr.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: vast.ai API key is required", fleet.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  newRetryableClient(cfg, logger.WithName("vastai")),
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// newRetryableClient retries rate-limited and failed requests. A 429 waits
// the fixed retry delay; other retryable failures back off exponentially
// up to that delay.
func newRetryableClient(cfg Config, logger logr.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = cfg.MaxAttempts - 1 // go-retryablehttp counts retries, not attempts
	client.RetryWaitMin = cfg.RetryDelay / 10
	client.RetryWaitMax = cfg.RetryDelay
	client.Logger = leveledLogger{log: logger}
	client.Backoff = func(lo, hi time.Duration, attempt int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return cfg.RetryDelay
		}
		return retryablehttp.DefaultBackoff(lo, hi, attempt, resp)
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func (p *Provider) Name() string { return "vastai" }

func (p *Provider) TestConnection(ctx context.Context) error {
	_, err := p.get(ctx, "/")
	return err
}

func (p *Provider) ListInstances(ctx context.Context) ([]*cloudprovider.Instance, error) {
	body, err := p.get(ctx, "/instances/")
	if err != nil {
		return nil, err
	}

	var resp instancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("decoding instances response: %w", err)}
	}

	instances := make([]*cloudprovider.Instance, 0, len(resp.Instances))
	for i, rec := range resp.Instances {
		instances = append(instances, rec.toInstance(i))
	}
	return instances, nil
}

func (p *Provider) GetBalance(ctx context.Context) (float64, error) {
	body, err := p.get(ctx, "/users/current/")
	if err != nil {
		return 0, err
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &fleet.FetchError{Err: fmt.Errorf("decoding user response: %w", err)}
	}
	if resp.Credit == nil {
		return 0, fmt.Errorf("user response: %w: credit", fleet.ErrMissingField)
	}
	return *resp.Credit, nil
}

// get performs an authenticated GET. Every failure, including exhausted
// retries, is reported as a single *fleet.FetchError.
func (p *Provider) get(ctx context.Context, path string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("waiting for rate limiter: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("creating request for %s: %w", path, err)}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("GET %s: %w", path, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("reading response from GET %s: %w", path, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &fleet.FetchError{Err: fmt.Errorf("GET %s returned HTTP %d: %s", path, resp.StatusCode, truncate(string(body), 200))}
	}
	return body, nil
}

func (r instanceRecord) toInstance(index int) *cloudprovider.Instance {
	inst := &cloudprovider.Instance{
		InstanceDescriptor: fleet.InstanceDescriptor{
			ID:     r.ID.String(),
			Status: fleet.StatusOther,
		},
		SSHHost: r.SSHHost,
		SSHPort: r.SSHPort,
	}

	if inst.ID == "" {
		inst.ID = fmt.Sprintf("#%d", index)
		inst.Missing = append(inst.Missing, "id")
	}
	if r.GPUName != nil && *r.GPUName != "" {
		inst.HardwareClass = *r.GPUName
	} else {
		inst.Missing = append(inst.Missing, "gpu_name")
	}
	if r.NumGPUs != nil && *r.NumGPUs > 0 {
		inst.GPUCount = fleet.Some(*r.NumGPUs)
	}
	if r.DPHTotal != nil && *r.DPHTotal >= 0 {
		inst.HourlyCost = fleet.Some(*r.DPHTotal)
	} else {
		inst.Missing = append(inst.Missing, "dph_total")
	}
	if r.GPUUtil != nil {
		inst.GPUUtilization = fleet.Some(*r.GPUUtil)
	}
	if r.Label != nil && *r.Label != "" {
		inst.Label = fleet.Some(*r.Label)
	}
	if r.ActualStatus != nil {
		inst.Status = fleet.ParseStatus(*r.ActualStatus)
	}
	return inst
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// leveledLogger adapts logr to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log logr.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error(nil, msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.V(1).Info(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.V(2).Info(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}
