package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.telegram.org"

// Member statuses that count as being in the channel. Everything else
// ("left", "kicked", "restricted", unknown) is treated as not a member.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
)

// Client is a minimal Bot API client for membership and channel-access checks.
// Calls are paced by a token bucket and pause while Telegram's retry_after window is open.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	logger     zerolog.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
	now           func() time.Time
}

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables pacing
	Burst             int
	Logger            zerolog.Logger
	HTTPClient        *http.Client
}

func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      token,
		limiter:    limiter,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// ChatMember is the subset of the Bot API ChatMember object we read.
type ChatMember struct {
	Status string `json:"status"`
	User   struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

type apiResponse[T any] struct {
	Ok          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
	Result T `json:"result"`
}

// APIError is a non-OK Bot API answer or an HTTP error status.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: status %d", e.Method, e.Code)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsClientError reports a 4xx answer: the bot lacks access or the user/chat is unknown.
func (e *APIError) IsClientError() bool {
	return e.Code >= 400 && e.Code < 500
}

func (e *APIError) IsRateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// MembershipResult is the outcome of one membership lookup. Err is set when the lookup failed;
// IsMember is then always false and the caller is expected to continue with the next item.
type MembershipResult struct {
	IsMember bool
	Status   string
	Err      error
}

// IsMemberStatus maps a ChatMember status to membership.
func IsMemberStatus(status string) bool {
	switch status {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	default:
		return false
	}
}

// CheckMembership looks up the user's status in the channel. Failures never escape as errors:
// 4xx answers, 5xx answers and transport failures all come back as IsMember=false with Err set.
func (c *Client) CheckMembership(ctx context.Context, telegramUserID int64, channelID string) MembershipResult {
	params := url.Values{
		"chat_id": {channelID},
		"user_id": {strconv.FormatInt(telegramUserID, 10)},
	}
	var member ChatMember
	if err := c.call(ctx, "getChatMember", params, &member); err != nil {
		c.logger.Debug().
			Err(err).
			Int64("telegram_user_id", telegramUserID).
			Str("channel_id", channelID).
			Msg("Membership check failed")
		return MembershipResult{IsMember: false, Err: err}
	}
	return MembershipResult{IsMember: IsMemberStatus(member.Status), Status: member.Status}
}

// CheckChannelAccess reports whether the bot can read the channel.
func (c *Client) CheckChannelAccess(ctx context.Context, channelID string) bool {
	if _, err := c.GetChat(ctx, channelID); err != nil {
		c.logger.Warn().Err(err).Str("channel_id", channelID).Msg("Bot has no access to channel")
		return false
	}
	return true
}

// GetChat fetches channel metadata by numeric id or @username.
func (c *Client) GetChat(ctx context.Context, channelID string) (*Chat, error) {
	var chat Chat
	if err := c.call(ctx, "getChat", url.Values{"chat_id": {channelID}}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.waitCooldown(ctx); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which contains the bot token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var result apiResponse[json.RawMessage]
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode >= http.StatusBadRequest || (decodeErr == nil && !result.Ok) {
		apiErr := &APIError{Method: method, Code: resp.StatusCode, Description: result.Description}
		if result.ErrorCode != 0 {
			apiErr.Code = result.ErrorCode
		}
		if apiErr.Description == "" {
			apiErr.Description = http.StatusText(resp.StatusCode)
		}
		if result.Parameters != nil && result.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
		}
		if apiErr.IsRateLimited() {
			c.openCooldown(apiErr.RetryAfter)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, decodeErr)
	}
	if err := json.Unmarshal(result.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) openCooldown(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.now().Add(retryAfter)
	if until.After(c.cooldownUntil) {
		c.cooldownUntil = until
	}
	c.logger.Warn().Dur("retry_after", retryAfter).Msg("Telegram rate limit hit, pausing requests")
}

func (c *Client) waitCooldown(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cooldownUntil.Sub(c.now())
	c.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
