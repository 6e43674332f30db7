package http

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulforge-labs/soulgate/adapters/ratelimit"
	"github.com/soulforge-labs/soulgate/adapters/store"
	"github.com/soulforge-labs/soulgate/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func setupRouter(quotas Quotas) *gin.Engine {
	svc := service.NewAuthService(
		store.NewMemoryChallengeStore(),
		store.NewMemorySessionStore(),
		nil,
		nil,
		service.Config{},
	)
	return SetupRouter(svc, ratelimit.NewMemoryRateLimiter(), quotas, nil)
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

// login walks the full challenge/sign/verify flow and returns the token pair.
func login(t *testing.T, router *gin.Engine, key *ecdsa.PrivateKey, address string) (string, string) {
	t.Helper()

	w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	challenge := decodeBody(t, w)

	w = doRequest(t, router, http.MethodPost, "/auth/verify", gin.H{
		"address":      address,
		"signature":    signMessage(t, key, challenge["message"].(string)),
		"challenge_id": challenge["challenge_id"].(string),
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decodeBody(t, w)

	return verified["token"].(string), verified["refresh_token"].(string)
}

func TestChallengeVerifyFlow(t *testing.T) {
	router := setupRouter(DefaultQuotas())
	key, address := newWallet(t)

	w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decodeBody(t, w)
	assert.Equal(t, true, challenge["success"])
	assert.NotEmpty(t, challenge["challenge_id"])
	assert.Contains(t, challenge["message"], strings.ToLower(address))

	w = doRequest(t, router, http.MethodPost, "/auth/verify", gin.H{
		"address":      address,
		"signature":    signMessage(t, key, challenge["message"].(string)),
		"challenge_id": challenge["challenge_id"].(string),
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decodeBody(t, w)

	assert.Equal(t, true, verified["success"])
	assert.NotEmpty(t, verified["token"])
	assert.NotEmpty(t, verified["refresh_token"])
	assert.Equal(t, strings.ToLower(address), verified["wallet_address"])
}

func TestChallengeRejectsBadAddress(t *testing.T) {
	router := setupRouter(DefaultQuotas())

	for _, address := range []string{"", "0x123", "not-an-address"} {
		w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "address %q", address)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
	}
}

func TestVerifyReplayRejected(t *testing.T) {
	router := setupRouter(DefaultQuotas())
	key, address := newWallet(t)

	w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decodeBody(t, w)

	payload := gin.H{
		"address":      address,
		"signature":    signMessage(t, key, challenge["message"].(string)),
		"challenge_id": challenge["challenge_id"].(string),
	}

	w = doRequest(t, router, http.MethodPost, "/auth/verify", payload, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/auth/verify", payload, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyForeignSignature(t *testing.T) {
	router := setupRouter(DefaultQuotas())
	_, address := newWallet(t)
	otherKey, _ := newWallet(t)

	w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decodeBody(t, w)

	w = doRequest(t, router, http.MethodPost, "/auth/verify", gin.H{
		"address":      address,
		"signature":    signMessage(t, otherKey, challenge["message"].(string)),
		"challenge_id": challenge["challenge_id"].(string),
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotation(t *testing.T) {
	router := setupRouter(DefaultQuotas())
	key, address := newWallet(t)
	_, refreshToken := login(t, router, key, address)

	w := doRequest(t, router, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decodeBody(t, w)
	assert.NotEmpty(t, rotated["token"])
	assert.NotEqual(t, refreshToken, rotated["refresh_token"])

	// replaying the pre-rotation refresh token prompts re-authentication
	w = doRequest(t, router, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	router := setupRouter(DefaultQuotas())

	for _, token := range []string{"", "never-issued"} {
		w := doRequest(t, router, http.MethodPost, "/auth/logout", nil, token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["success"])
	}

	key, address := newWallet(t)
	token, _ := login(t, router, key, address)

	w := doRequest(t, router, http.MethodPost, "/auth/logout", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	// session is gone, logging out again still succeeds
	w = doRequest(t, router, http.MethodGet, "/api/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doRequest(t, router, http.MethodPost, "/auth/logout", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	router := setupRouter(DefaultQuotas())

	w := doRequest(t, router, http.MethodGet, "/auth/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["authenticated"])
	assert.NotContains(t, body, "session")
	assert.Contains(t, body, "system")
	assert.Contains(t, body, "rate_limits")

	key, address := newWallet(t)
	token, _ := login(t, router, key, address)

	w = doRequest(t, router, http.MethodGet, "/auth/status", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["authenticated"])

	session := body["session"].(map[string]any)
	assert.Equal(t, strings.ToLower(address), session["wallet_address"])

	system := body["system"].(map[string]any)
	assert.Equal(t, float64(1), system["active_sessions"])
}

func TestMeRequiresAuth(t *testing.T) {
	router := setupRouter(DefaultQuotas())

	w := doRequest(t, router, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/me", nil, "bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	key, address := newWallet(t)
	token, _ := login(t, router, key, address)

	w = doRequest(t, router, http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, strings.ToLower(address), decodeBody(t, w)["wallet_address"])
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	quotas := DefaultQuotas()
	quotas.Auth = Quota{MaxRequests: 20, Window: time.Minute}
	router := setupRouter(quotas)
	_, address := newWallet(t)

	for i := 1; i <= 20; i++ {
		w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitClassesIndependent(t *testing.T) {
	quotas := DefaultQuotas()
	quotas.Auth = Quota{MaxRequests: 1, Window: time.Minute}
	router := setupRouter(quotas)
	_, address := newWallet(t)

	w := doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, router, http.MethodPost, "/auth/challenge", gin.H{"address": address}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// exhausting the auth class does not block the status class
	w = doRequest(t, router, http.MethodGet, "/auth/status", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	router := setupRouter(DefaultQuotas())
	w := doRequest(t, router, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
