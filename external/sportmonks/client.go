package sportmonks

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
	"github.com/riskibarqy/prediction-settlement/internal/platform/resilience"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

const (
	defaultBaseURL       = "https://api.sportmonks.com/v3/football"
	includeFixtureList   = "participants;scores;state"
	includeFixtureDetail = "participants;scores;state;statistics.type"
	defaultPerPage       = 50
	maxDatePages         = 20
	maxResponseBytes     = 6 << 20
)

var apiTokenParamRegex = regexp.MustCompile(`api_token=[^&\s"']+`)
var errSportMonksTransient = crerr.New("sportmonks transient failure")
var errSportMonksNotFound = crerr.New("sportmonks resource not found")

// Metrics receives request and breaker observations. It is optional.
type Metrics interface {
	ObserveUpstreamRequest(endpoint, outcome string, elapsed time.Duration)
	SetCircuitState(name, state string)
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RateLimit      float64
	RateBurst      int
	Logger         *logging.Logger
	Metrics        Metrics
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	logger       *logging.Logger
	metrics      Metrics
	breaker      *resilience.CircuitBreaker
	flight       resilience.SingleFlight[[]byte]
	now          func() time.Time
}

var _ usecase.FixtureProvider = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.RateBurst, 1)

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	client := &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		token:        strings.TrimSpace(cfg.Token),
		maxRetries:   max(cfg.MaxRetries, 0),
		retryBackoff: backoff,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger,
		metrics:      cfg.Metrics,
		breaker:      resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		now:          time.Now,
	}
	client.breaker.OnStateChange(func(from, to resilience.CircuitState) {
		logger.Warn("sportmonks circuit breaker state changed", "from", from, "to", to)
		if client.metrics != nil {
			client.metrics.SetCircuitState("sportmonks", string(to))
		}
	})
	return client
}

// FetchFixturesByDate walks every page of /fixtures/date/{date}.
func (c *Client) FetchFixturesByDate(ctx context.Context, date string) ([]fixture.Fixture, error) {
	if _, err := time.Parse(fixture.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", usecase.ErrInvalidInput, date)
	}

	fetchedAt := c.now().UTC()
	out := make([]fixture.Fixture, 0, defaultPerPage)
	for page := 1; page <= maxDatePages; page++ {
		var envelope fixturesEnvelope
		err := c.doJSON(ctx, "fixtures_by_date", "/fixtures/date/"+date, map[string]string{
			"include":  includeFixtureList,
			"per_page": strconv.Itoa(defaultPerPage),
			"page":     strconv.Itoa(page),
		}, &envelope)
		if err != nil {
			if page > 1 && stderrors.Is(err, errSportMonksNotFound) {
				break
			}
			if stderrors.Is(err, errSportMonksNotFound) {
				return []fixture.Fixture{}, nil
			}
			return nil, err
		}

		for _, item := range envelope.Data {
			mapped, err := mapFixture(item, fetchedAt)
			if err != nil {
				c.logger.WarnContext(ctx, "skip malformed sportmonks fixture", "fixture_id", item.ID, "error", err)
				continue
			}
			out = append(out, mapped)
		}

		if envelope.Pagination == nil || !envelope.Pagination.HasMore {
			break
		}
	}
	return out, nil
}

// FetchFixtureByID returns found=false when the provider answers 404.
func (c *Client) FetchFixtureByID(ctx context.Context, fixtureID int64) (fixture.Fixture, bool, error) {
	if fixtureID <= 0 {
		return fixture.Fixture{}, false, fmt.Errorf("%w: fixture id must be > 0", usecase.ErrInvalidInput)
	}

	var envelope fixtureEnvelope
	err := c.doJSON(ctx, "fixture_by_id", "/fixtures/"+strconv.FormatInt(fixtureID, 10), map[string]string{
		"include": includeFixtureDetail,
	}, &envelope)
	if err != nil {
		if stderrors.Is(err, errSportMonksNotFound) {
			return fixture.Fixture{}, false, nil
		}
		return fixture.Fixture{}, false, err
	}
	if envelope.Data == nil || envelope.Data.ID == 0 {
		return fixture.Fixture{}, false, nil
	}

	mapped, err := mapFixture(*envelope.Data, c.now().UTC())
	if err != nil {
		return fixture.Fixture{}, false, err
	}
	return mapped, true, nil
}

func (c *Client) FetchLiveFixtures(ctx context.Context) ([]fixture.Fixture, error) {
	var envelope fixturesEnvelope
	err := c.doJSON(ctx, "livescores_inplay", "/livescores/inplay", map[string]string{
		"include": includeFixtureList,
	}, &envelope)
	if err != nil {
		if stderrors.Is(err, errSportMonksNotFound) {
			return []fixture.Fixture{}, nil
		}
		return nil, err
	}

	fetchedAt := c.now().UTC()
	out := make([]fixture.Fixture, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		mapped, err := mapFixture(item, fetchedAt)
		if err != nil {
			c.logger.WarnContext(ctx, "skip malformed sportmonks live fixture", "fixture_id", item.ID, "error", err)
			continue
		}
		out = append(out, mapped)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint, path string, query map[string]string, target any) error {
	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("api_token", c.token)

	fullURL := c.baseURL + path + "?" + values.Encode()
	key := path + "?" + values.Encode()

	started := c.now()
	raw, _, err := c.flight.Do(ctx, key, func() ([]byte, error) {
		var body []byte
		execErr := c.breaker.Execute(func() error {
			var reqErr error
			body, reqErr = c.executeRequest(ctx, fullURL)
			return reqErr
		}, isSportMonksCircuitFailure)
		return body, execErr
	})
	if err != nil {
		c.observe(endpoint, outcomeFor(err), started)
		return classifyError(err)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		c.observe(endpoint, "malformed", started)
		return fmt.Errorf("%w: decode %s payload: %v", usecase.ErrUpstreamMalformed, endpoint, err)
	}
	c.observe(endpoint, "ok", started)
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = fmt.Errorf("%w: send request: %s", errSportMonksTransient, sanitizeSensitiveText(err.Error(), c.token))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errSportMonksTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", errSportMonksNotFound, redactAPIURL(fullURL))
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errSportMonksTransient, resp.StatusCode, sanitizeSensitiveText(abbreviateBody(raw), c.token))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, sanitizeSensitiveText(abbreviateBody(raw), c.token))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * c.retryBackoff
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: provider request failed", errSportMonksTransient)
	}
	c.logger.WarnContext(ctx, "sportmonks request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, lastErr
}

func (c *Client) observe(endpoint, outcome string, started time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveUpstreamRequest(endpoint, outcome, c.now().Sub(started))
}

// classifyError keeps not-found for the callers that treat it as absence and
// folds everything else into the upstream taxonomy.
func classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errSportMonksNotFound):
		return err
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Errorf("%w: sport data provider is temporarily unavailable: %w", usecase.ErrUpstreamUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", usecase.ErrUpstreamUnavailable, err)
	}
}

func outcomeFor(err error) string {
	switch {
	case stderrors.Is(err, errSportMonksNotFound):
		return "not_found"
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "REDACTED")
	}
	return apiTokenParamRegex.ReplaceAllString(value, "api_token=REDACTED")
}

func isSportMonksCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errSportMonksTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("api_token") {
		query.Set("api_token", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
