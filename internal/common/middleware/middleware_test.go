package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
	"github.com/open-builders/sponsor-points-backend/internal/domain/user"
)

const testBotToken = "12345:test-token"

func init() {
	gin.SetMode(gin.TestMode)
}

// signInitData builds init data the way Telegram signs it for Mini Apps.
func signInitData(t *testing.T, token string, userID int64, authDate time.Time) string {
	t.Helper()
	userJSON, err := json.Marshal(map[string]interface{}{"id": userID, "first_name": "Test", "username": fmt.Sprintf("user%d", userID)})
	require.NoError(t, err)

	fields := map[string]string{
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"query_id":  "AAH-test",
		"user":      string(userJSON),
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return q.Encode()
}

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()), ErrorHandler(zerolog.Nop()))
	chain := append(handlers, func(c *gin.Context) {
		tg, _ := TelegramUser(c)
		c.JSON(http.StatusOK, gin.H{"telegram_id": tg.ID, "user_id": c.GetInt64(UserIDKey)})
	})
	r.GET("/test", chain...)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestInitDataAcceptsHeaderAndQuery(t *testing.T) {
	r := newTestEngine(InitData(testBotToken, time.Hour))
	raw := signInitData(t, testBotToken, 42, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(InitDataHeader, raw)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"telegram_id":42`)

	req = httptest.NewRequest(http.MethodGet, "/test?"+url.Values{InitDataQuery: {raw}}.Encode(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestInitDataRejects(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		initData func(t *testing.T) string
		status   int
	}{
		{"missing", testBotToken, func(t *testing.T) string { return "" }, http.StatusUnauthorized},
		{"wrong token", testBotToken, func(t *testing.T) string { return signInitData(t, "999:other", 42, time.Now()) }, http.StatusUnauthorized},
		{"expired", testBotToken, func(t *testing.T) string { return signInitData(t, testBotToken, 42, time.Now().Add(-2*time.Hour)) }, http.StatusUnauthorized},
		{"not configured", "", func(t *testing.T) string { return signInitData(t, testBotToken, 42, time.Now()) }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine(InitData(tt.token, time.Hour))
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if raw := tt.initData(t); raw != "" {
				req.Header.Set(InitDataHeader, raw)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newTestEngine(InitData(testBotToken, 0), RequireAdmin([]int64{7}))

	for _, tc := range []struct {
		userID int64
		status int
	}{{7, http.StatusOK}, {8, http.StatusForbidden}} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(InitDataHeader, signInitData(t, testBotToken, tc.userID, time.Now()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "user %d", tc.userID)
	}
}

func TestRequireAdminWithoutInitData(t *testing.T) {
	r := newTestEngine(RequireAdmin([]int64{7}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.ErrCodeUnauthorized, decodeError(t, w).Error.Code)
}

type fakeEnsurer struct {
	err error
}

func (f fakeEnsurer) EnsureTelegramUser(ctx context.Context, telegramID int64, username string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	tg := telegramID
	return &user.User{ID: telegramID + 1000, TelegramID: &tg, Username: username}, nil
}

func TestAutoCreateUser(t *testing.T) {
	r := newTestEngine(InitData(testBotToken, 0), AutoCreateUser(fakeEnsurer{}))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(InitDataHeader, signInitData(t, testBotToken, 5, time.Now()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":1005`)

	r = newTestEngine(InitData(testBotToken, 0), AutoCreateUser(fakeEnsurer{err: stderrors.New("db down")}))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeDatabaseError, decodeError(t, w).Error.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get(RequestHeader))
}

func TestRecoveryAndPlainErrors(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()), ErrorHandler(zerolog.Nop()), AccessLog(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/plain", func(c *gin.Context) { Abort(c, stderrors.New("plain failure")) })
	r.GET("/busy", func(c *gin.Context) { Abort(c, errors.NewTickInProgressError()) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, decodeError(t, w).Error.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/busy", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStatusCode(t *testing.T) {
	tests := map[errors.ErrorCode]int{
		errors.ErrCodeValidation:        http.StatusBadRequest,
		errors.ErrCodeChannelNotFound:   http.StatusNotFound,
		errors.ErrCodeForbidden:         http.StatusForbidden,
		errors.ErrCodeSchedulerDisabled: http.StatusServiceUnavailable,
		errors.ErrCodeTelegramAPI:       http.StatusBadGateway,
		errors.ErrCodeDatabaseError:     http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusCode(errors.New(code, "x")), string(code))
	}
}
