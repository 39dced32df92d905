package gin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ginfw "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paywall "github.com/lalitcap23/pay-per-api"
	paywallhttp "github.com/lalitcap23/pay-per-api/http"
	"github.com/lalitcap23/pay-per-api/redemption"
	"github.com/lalitcap23/pay-per-api/test/mocks/ledger"
	"github.com/lalitcap23/pay-per-api/tokenstore"
)

func newTestEngine(t *testing.T, content paywallhttp.ContentFunc) (*ginfw.Engine, *ledger.Fake) {
	t.Helper()

	fake := ledger.New()
	service := paywall.NewService(
		paywall.NewLedgerVerifier(fake),
		paywall.NewIssuer(redemption.NewMemory()),
	)
	_, err := service.AddResource(paywall.ResourceConfig{
		Name:        "jokes",
		Path:        "/api/jokes",
		Description: "Premium dad joke API",
		Price:       paywall.Price{Amount: 100, Token: "USDC"},
		Asset:       "usdc-mint",
		Recipient:   "shop-wallet",
		Network:     "devnet",
	}, tokenstore.NewMemory())
	require.NoError(t, err)

	h := paywallhttp.NewHandler(service, paywallhttp.WithContent("jokes", content))
	return NewEngine(h), fake
}

func serve(r http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func buyToken(t *testing.T, r http.Handler, fake *ledger.Fake) string {
	t.Helper()
	fake.Transfer("sig-1", "payer", "shop-wallet", "usdc-mint", 100)
	w := serve(r, http.MethodPost, "/api/verify-payment", "", `{"transactionReference":"sig-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body paywallhttp.VerifySuccessBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Token
}

func TestPaymentMiddleware_Flow(t *testing.T) {
	r, fake := newTestEngine(t, func(context.Context) (interface{}, error) {
		return map[string]string{"joke": "ha"}, nil
	})

	w := serve(r, http.MethodGet, "/api/jokes", "", "")
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), `"price":{"amount":100,"token":"USDC"}`)
	assert.Equal(t, "solana-pay", w.Header().Get("Accept-Payment"))

	token := buyToken(t, r, fake)

	w = serve(r, http.MethodGet, "/api/jokes", "Bearer "+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"joke":"ha"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/jokes", "Bearer "+token, "")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestPaymentMiddleware_RestoresOnPanic(t *testing.T) {
	panicking := true
	r, fake := newTestEngine(t, func(context.Context) (interface{}, error) {
		if panicking {
			panic("boom")
		}
		return "ok", nil
	})
	token := buyToken(t, r, fake)

	w := serve(r, http.MethodGet, "/api/jokes", "Bearer "+token, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	panicking = false
	w = serve(r, http.MethodGet, "/api/jokes", "Bearer "+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentMiddleware_Health(t *testing.T) {
	r, _ := newTestEngine(t, func(context.Context) (interface{}, error) { return "ok", nil })

	w := serve(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resources":["/api/jokes"]`)
}

func TestVerify_OversizedBody(t *testing.T) {
	r, _ := newTestEngine(t, func(context.Context) (interface{}, error) { return "ok", nil })

	body := `{"signature":"` + strings.Repeat("a", paywallhttp.MaxBodyBytes) + `"}`
	w := serve(r, http.MethodPost, "/api/verify-payment", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), paywall.ErrCodeRequestTooLarge)
}
