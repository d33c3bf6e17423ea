package http_api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/promohive"
	"github.com/promohive/rewards/internal/repository"
	"github.com/promohive/rewards/pkg/logger"
)

const (
	testSecret = "test-secret"
	adgemKey   = "adgem-key"
	adminID    = int64(9000)
)

type nopNotifier struct{}

func (nopNotifier) Notify(*models.Event) {}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	admin  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewRepository(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), logger.NewNopLogger())
	require.NoError(t, err)
	sqlDB, err := db.Conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Development:     true,
		JWTSecret:       testSecret,
		InstanceID:      "test",
		AccrualInterval: time.Hour,
		AccrualLockTTL:  time.Minute,
		WebhookKeys:     map[string]string{"adgem": adgemKey},
	}
	svc := promohive.NewPromoHive(db, nopNotifier{}, nil, logger.NewNopLogger(), cfg)
	server := NewHTTPServer(svc, cfg, logger.NewNopLogger()).(*HTTPServer)
	return &testServer{t: t, router: server.router, admin: token(t, testSecret, adminID, models.RoleAdmin, time.Hour)}
}

func token(t *testing.T, secret string, userID int64, role models.Role, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(method, path, bearer string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

// approvedUser registers a user, approves it and returns its id and token.
func (s *testServer) approvedUser(email string) (int64, string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/register", "", gin.H{"email": email, "username": "u"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var user models.User
	decode(s.t, w, &user)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/approve", user.ID), s.admin, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return user.ID, token(s.t, testSecret, user.ID, models.RoleUser, time.Hour)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + token(t, "other", 1, models.RoleUser, time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, testSecret, 1, models.RoleUser, -time.Minute), http.StatusUnauthorized},
		{"valid token unknown user", "Bearer " + token(t, testSecret, 1, models.RoleUser, time.Hour), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAdminRoutesRequireCapability(t *testing.T) {
	s := newTestServer(t)
	userToken := token(t, testSecret, 5, models.RoleUser, time.Hour)

	for _, path := range []string{
		"/api/v1/admin/users",
		"/api/v1/admin/withdrawals",
		"/api/v1/admin/level-requests",
		"/api/v1/admin/settings",
		"/api/v1/admin/submissions",
	} {
		w := s.do(http.MethodGet, path, userToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)

		w = s.do(http.MethodGet, path, s.admin, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := s.do(http.MethodPost, "/api/v1/admin/accrual/run", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, "/api/v1/admin/accrual/run", s.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithdrawalFlow(t *testing.T) {
	s := newTestServer(t)
	id, userToken := s.approvedUser("walt@example.com")

	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/adjust", id), s.admin, gin.H{"amount": "$10.00", "reason": "promo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var wallet models.Wallet
	decode(t, w, &wallet)
	assert.Equal(t, int64(1500), wallet.Balance)

	body := gin.H{"amount": "9.99", "wallet_address": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", "network": "TRC20"}
	w = s.do(http.MethodPost, "/api/v1/withdrawals", userToken, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	body["amount"] = "10.00"
	w = s.do(http.MethodPost, "/api/v1/withdrawals", userToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var withdrawal models.Withdrawal
	decode(t, w, &withdrawal)
	assert.Equal(t, int64(1000), withdrawal.Amount)

	w = s.do(http.MethodPost, "/api/v1/withdrawals", userToken, body)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	approvePath := fmt.Sprintf("/api/v1/admin/withdrawals/%d/approve", withdrawal.ID)
	w = s.do(http.MethodPost, approvePath, s.admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = s.do(http.MethodPost, approvePath, s.admin, gin.H{"tx_hash": "0xabc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, approvePath, s.admin, gin.H{"tx_hash": "0xabc"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/wallet", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &wallet)
	assert.Equal(t, int64(500), wallet.Balance)
	assert.Equal(t, int64(0), wallet.PendingBalance)
	assert.Equal(t, int64(1000), wallet.TotalWithdrawn)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/admin/users/%d/reconcile", id), s.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/ledger?limit=2", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.LedgerEntry
	decode(t, w, &entries)
	assert.Len(t, entries, 2)
}

func TestCancelOtherUsersWithdrawal(t *testing.T) {
	s := newTestServer(t)
	ownerID, ownerToken := s.approvedUser("owner@example.com")
	_, otherToken := s.approvedUser("other@example.com")

	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/adjust", ownerID), s.admin, gin.H{"amount": "5", "reason": "promo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/withdrawals", ownerToken, gin.H{
		"amount": "10", "wallet_address": "0x52908400098527886E0F7030069857D2E4169EE7", "network": "BEP20",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var withdrawal models.Withdrawal
	decode(t, w, &withdrawal)

	path := fmt.Sprintf("/api/v1/withdrawals/%d/cancel", withdrawal.ID)
	w = s.do(http.MethodPost, path, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &withdrawal)
	assert.Equal(t, models.WithdrawalRejected, withdrawal.Status)
}

func TestOfferWebhook(t *testing.T) {
	s := newTestServer(t)
	id, userToken := s.approvedUser("olive@example.com")
	body := gin.H{"external_id": "abc-1", "user_id": id, "payout": "1.25"}

	w := s.do(http.MethodPost, "/api/v1/webhooks/unknown", "", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/webhooks/adgem", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/webhooks/adgem", "", body, "X-Api-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// no key configured for this network
	w = s.do(http.MethodPost, "/api/v1/webhooks/cpalead?key=anything", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/webhooks/adgem", "", body, "X-Api-Key", adgemKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/webhooks/adgem?key="+adgemKey, "", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"duplicate":true`)

	w = s.do(http.MethodGet, "/api/v1/wallet", userToken, nil)
	var wallet models.Wallet
	decode(t, w, &wallet)
	assert.Equal(t, int64(500+125), wallet.Balance)
}

func TestUpdateSetting(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPut, "/api/v1/admin/settings/MIN_WITHDRAWAL", s.admin, gin.H{"value": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/admin/settings/NOPE", s.admin, gin.H{"value": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/admin/settings/WELCOME_BONUS", s.admin, gin.H{"value": "$1.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	id, userToken := s.approvedUser("sue@example.com")
	require.NotZero(t, id)
	w = s.do(http.MethodGet, "/api/v1/wallet", userToken, nil)
	var wallet models.Wallet
	decode(t, w, &wallet)
	assert.Equal(t, int64(100), wallet.Balance)
}

func TestLevelUpgradeEndpoints(t *testing.T) {
	s := newTestServer(t)
	id, userToken := s.approvedUser("lou@example.com")

	w := s.do(http.MethodPost, "/api/v1/levels", userToken, gin.H{"level": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/adjust", id), s.admin, gin.H{"amount": "5.00", "reason": "promo"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/levels", userToken, gin.H{"level": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var request models.LevelRequest
	decode(t, w, &request)

	w = s.do(http.MethodPost, "/api/v1/levels", userToken, gin.H{"level": 4})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/level-requests/%d/reject", request.ID), s.admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/level-requests/%d/approve", request.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &request)
	assert.Equal(t, models.RequestApproved, request.Status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{fmt.Errorf("reserve: %w", models.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{models.ErrWithdrawalAlreadyPending, http.StatusConflict},
		{models.ErrAlreadyProcessed, http.StatusConflict},
		{models.ErrBelowMinimum, http.StatusUnprocessableEntity},
		{models.ErrUserNotFound, http.StatusNotFound},
		{models.NewTransientError("get wallet", fmt.Errorf("connection reset")), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestBadPathID(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/v1/admin/users/abc/approve", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTelegramLink(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.approvedUser("tess@example.com")

	w := s.do(http.MethodPost, "/api/v1/telegram/link", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/telegram/link", userToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var link models.TelegramLink
	decode(t, w, &link)
	assert.NotEmpty(t, link.Token)
	assert.Equal(t, "/start "+link.Token, link.Command)

	w = s.do(http.MethodGet, "/api/v1/admin/users", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), link.Token, "tokens are never serialised")
}
