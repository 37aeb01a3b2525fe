package rpc

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketledger/core/types"
	"marketledger/native/market"
	"marketledger/rpc/modules"
)

func TestHandleRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  "))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "request body required") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "-32700") {
		t.Fatalf("expected parse error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	payload := `{"jsonrpc":"2.0","method":"market_now","params":["` + strings.Repeat("a", maxRequestBytes) + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec, resp := env.call("market_doesNotExist", nil, "")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %d %+v", rec.Code, resp.Error)
	}
}

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec, _ := env.call("market_now", nil, "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","method":"market_now","id":7}`))
	req.Header.Set(requestIDHeader, "trace-123")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "trace-123" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

func TestWriteMethodsRequireBearer(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 250}, "")
	if rec.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %d %+v", rec.Code, resp.Error)
	}
	if _, err := env.engine.Config(); err == nil {
		t.Fatalf("config initialised without credentials")
	}
}

func TestWriteMethodsRejectForeignTokens(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	wrongSecret, err := IssueToken([]byte("other-secret"), testIssuer, env.authority, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	wrongIssuer, err := IssueToken([]byte(testJWTSecret), "someone-else", env.authority, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for name, tok := range map[string]string{"secret": wrongSecret, "issuer": wrongIssuer, "garbage": "not-a-jwt"} {
		rec, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 250}, tok)
		if rec.Code != http.StatusUnauthorized || resp.Error == nil {
			t.Fatalf("%s: expected unauthorized, got %d %+v", name, rec.Code, resp.Error)
		}
	}
}

func TestInitializeConfigThroughRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	tok := env.token(env.authority)

	_, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 250}, tok)
	var cfg market.Config
	decodeResult(t, resp, &cfg)
	if cfg.Authority != env.authority || cfg.FeeBps != 250 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	_, resp = env.call("market_getConfig", nil, "")
	var fetched market.Config
	decodeResult(t, resp, &fetched)
	if fetched != cfg {
		t.Fatalf("config mismatch: %+v vs %+v", fetched, cfg)
	}

	rec, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 250}, tok)
	if rec.Code != http.StatusConflict || resp.Error == nil || resp.Error.Code != market.ErrConfigInitialized.Code {
		t.Fatalf("expected config initialised conflict, got %d %+v", rec.Code, resp.Error)
	}
}

func TestMarketErrorsCarryCategory(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	_, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 250}, env.token(env.authority))
	if resp.Error != nil {
		t.Fatalf("initialize: %+v", resp.Error)
	}

	rec, resp := env.call("market_updateWhitelist", map[string]interface{}{"mint": testAddress(0x44).Hex(), "add": true}, env.token(env.buyer))
	if rec.Code != http.StatusForbidden || resp.Error == nil || resp.Error.Code != market.ErrInvalidAuthority.Code {
		t.Fatalf("expected invalid authority, got %d %+v", rec.Code, resp.Error)
	}
	data, ok := resp.Error.Data.(map[string]interface{})
	if !ok || data["category"] != string(market.CategoryAuthorization) {
		t.Fatalf("expected authorization category, got %#v", resp.Error.Data)
	}

	rec, resp = env.call("market_getListing", map[string]interface{}{"address": testAddress(0x55).Hex()}, "")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != market.ErrRecordNotFound.Code {
		t.Fatalf("expected record not found, got %d %+v", rec.Code, resp.Error)
	}
}

func TestInvalidParams(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec, resp := env.call("market_getListing", map[string]interface{}{"address": "0x1234"}, "")
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %d %+v", rec.Code, resp.Error)
	}
	rec, resp = env.call("market_getListing", nil, "")
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected missing params rejected, got %d %+v", rec.Code, resp.Error)
	}
}

func TestDeriveAddressMatchesLedger(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	seed := types.Hash{1, 2, 3}
	_, resp := env.call("market_deriveAddress", map[string]interface{}{
		"kind":  "listing",
		"owner": env.buyer.Hex(),
		"seed":  seed.Hex(),
	}, "")
	var got market.Derivation
	decodeResult(t, resp, &got)
	want, err := market.ListingAddress(env.buyer, seed)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got != want {
		t.Fatalf("derivation mismatch: %+v vs %+v", got, want)
	}

	_, resp = env.call("market_deriveAddress", map[string]interface{}{"kind": "bogus"}, "")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected unknown kind rejected, got %+v", resp.Error)
	}
}

func TestNativeTransferAndBalance(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	_, resp := env.call("native_transfer", map[string]interface{}{"to": env.buyer.Hex(), "amount": 5000}, env.token(env.authority))
	if resp.Error != nil {
		t.Fatalf("transfer: %+v", resp.Error)
	}
	_, resp = env.call("market_getBalance", map[string]interface{}{"address": env.buyer.Hex()}, "")
	var bal struct {
		Balance uint64 `json:"balance"`
	}
	decodeResult(t, resp, &bal)
	if bal.Balance != 1_000_000_005_000 {
		t.Fatalf("unexpected balance %d", bal.Balance)
	}
}

func TestListEventsReturnsCommittedEvents(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	_, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 100}, env.token(env.authority))
	if resp.Error != nil {
		t.Fatalf("initialize: %+v", resp.Error)
	}
	// Rejected operations never reach the indexer.
	_, _ = env.call("market_initializeConfig", map[string]interface{}{"feeBps": 100}, env.token(env.authority))

	_, resp = env.call("market_listEvents", map[string]interface{}{"type": market.EventTypeConfigInitialized}, "")
	var page modules.ListEventsResult
	decodeResult(t, resp, &page)
	if len(page.Events) != 1 {
		t.Fatalf("expected one config event, got %d", len(page.Events))
	}
	if page.Events[0].Attributes["feeBps"] != "100" {
		t.Fatalf("expected fee attribute, got %+v", page.Events[0].Attributes)
	}
	if page.NextID != page.Events[0].ID {
		t.Fatalf("cursor %d does not match last id %d", page.NextID, page.Events[0].ID)
	}

	_, resp = env.call("market_listEvents", nil, "")
	decodeResult(t, resp, &page)
	if len(page.Events) == 0 {
		t.Fatalf("expected events without filter")
	}
}

func TestRateLimitPerCaller(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RequestsPerMinute: 1, Burst: 2})
	for i := 0; i < 2; i++ {
		if rec, _ := env.call("market_now", nil, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i, rec.Code)
		}
	}
	rec, resp := env.call("market_now", nil, "")
	if rec.Code != http.StatusTooManyRequests || resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected throttle, got %d %+v", rec.Code, resp.Error)
	}

	// Authenticated callers draw from their own bucket.
	if rec, _ := env.call("native_transfer", map[string]interface{}{"to": env.buyer.Hex(), "amount": 1}, env.token(env.authority)); rec.Code != http.StatusOK {
		t.Fatalf("authenticated caller throttled by anonymous bucket: %d", rec.Code)
	}
}

func TestClientSourceIgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if source := clientSource(req); source != "10.0.0.5" {
		t.Fatalf("expected remote address, got %q", source)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.call("market_now", nil, "")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "market_rpc_requests_total") {
		t.Fatalf("expected rpc metrics exposed, got %d", rec.Code)
	}
}

func TestAuthFailureLogMasksToken(t *testing.T) {
	var logs bytes.Buffer
	env := newTestEnv(t, ServerConfig{Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	_, resp := env.call("market_initializeConfig", map[string]interface{}{"feeBps": 250}, "leaked.token.value")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}
	out := logs.String()
	if strings.Contains(out, "leaked.token.value") {
		t.Fatalf("bearer token written to logs: %s", out)
	}
	if !strings.Contains(out, `"authorization":"Bearer [REDACTED]"`) {
		t.Fatalf("expected masked authorization attribute, got %s", out)
	}
}
