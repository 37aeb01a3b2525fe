package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"marketledger/core/events"
	"marketledger/core/state"
	"marketledger/core/types"
	"marketledger/indexer"
	"marketledger/native/market"
	"marketledger/rpc/modules"
	"marketledger/storage"
)

const (
	testJWTSecret = "rpc-test-secret"
	testIssuer    = "rpc-tests"
)

type testEnv struct {
	t         *testing.T
	server    *Server
	engine    *market.Engine
	indexer   *indexer.Indexer
	authority types.Address
	buyer     types.Address
}

func testAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, types.AddressLength))
	return addr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{t: t, authority: testAddress(0xA1), buyer: testAddress(0xB1)}
	manager := state.NewManager(storage.NewMemDB(), state.DefaultRent())
	if _, err := manager.ApplyGenesis([]state.GenesisAccount{
		{Address: env.authority, Balance: 1_000_000_000_000},
		{Address: env.buyer, Balance: 1_000_000_000_000},
	}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	ix, err := indexer.New(db, discardLogger())
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	env.indexer = ix

	env.engine = market.NewEngine(manager)
	env.engine.SetLogger(discardLogger())
	env.engine.SetEmitter(events.Fanout{ix, cfg.Hub})
	env.engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	if len(cfg.JWT.Secret) == 0 {
		cfg.JWT = JWTConfig{Secret: []byte(testJWTSecret), Issuer: testIssuer, ClockSkew: time.Minute}
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 6000
		cfg.Burst = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	env.server = NewServer(modules.NewMarketModule(env.engine), modules.NewEventsModule(ix), cfg)
	return env
}

func (env *testEnv) token(subject types.Address) string {
	env.t.Helper()
	tok, err := IssueToken([]byte(testJWTSecret), testIssuer, subject, time.Hour)
	if err != nil {
		env.t.Fatalf("issue token: %v", err)
	}
	return tok
}

// call posts a single-parameter JSON-RPC request. An empty bearer sends no
// Authorization header.
func (env *testEnv) call(method string, params interface{}, bearer string) (*httptest.ResponseRecorder, RPCResponse) {
	env.t.Helper()
	req := RPCRequest{JSONRPC: jsonRPCVersion, Method: method, ID: 1}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			env.t.Fatalf("marshal params: %v", err)
		}
		req.Params = []json.RawMessage{raw}
	}
	body, err := json.Marshal(req)
	if err != nil {
		env.t.Fatalf("marshal request: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.RemoteAddr = "10.0.0.5:1234"
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httpReq)
	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		env.t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}
