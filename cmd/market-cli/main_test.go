package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/indexer"
	"marketledger/native/market"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestKeygenAndAddressAgree(t *testing.T) {
	t.Setenv(keystorePassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "seller.keystore")

	code, out, errOut := runCLI(t, "keygen", "--out", path)
	if code != 0 {
		t.Fatalf("keygen failed: %s", errOut)
	}
	var generated addressOutput
	if err := json.Unmarshal([]byte(out), &generated); err != nil {
		t.Fatalf("decode keygen output: %v", err)
	}
	if !strings.HasPrefix(generated.Bech32, crypto.AddressHRP+"1") {
		t.Fatalf("unexpected bech32 %q", generated.Bech32)
	}

	code, out, errOut = runCLI(t, "address", "--keystore", path)
	if code != 0 {
		t.Fatalf("address failed: %s", errOut)
	}
	var read addressOutput
	if err := json.Unmarshal([]byte(out), &read); err != nil {
		t.Fatalf("decode address output: %v", err)
	}
	if read != generated {
		t.Fatalf("keystore address %+v differs from generated %+v", read, generated)
	}
}

func TestSignListingProducesVerifiableSignature(t *testing.T) {
	t.Setenv(keystorePassEnv, "pw")
	dir := t.TempDir()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	keystorePath := filepath.Join(dir, "seller.keystore")
	if err := crypto.SaveToKeystore(keystorePath, key, "pw"); err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	payloadPath := filepath.Join(dir, "listing.json")
	if err := os.WriteFile(payloadPath, []byte(`{"title":"lamp"}`), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	code, out, errOut := runCLI(t, "sign-listing", "--keystore", keystorePath, "--seed", "lamp-1", "--payload-file", payloadPath, "--price", "1500")
	if code != 0 {
		t.Fatalf("sign-listing failed: %s", errOut)
	}
	var params listingParams
	if err := json.Unmarshal([]byte(out), &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.Seller != key.Address() || params.Price != 1500 || !params.Currency.IsNative() {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.Seed != crypto.Keccak256([]byte("lamp-1")) {
		t.Fatalf("text seed not hashed")
	}
	if params.PayloadHash != crypto.PayloadHash([]byte(`{"title":"lamp"}`)) {
		t.Fatalf("payload hash mismatch")
	}
	msg := market.ListingAuthorizationMessage(params.Seed, params.PayloadHash, params.Price, params.Currency)
	if err := (crypto.Secp256k1Verifier{}).Verify(key.Address(), msg, params.SellerSignature); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestSignListingRequiresPayload(t *testing.T) {
	code, _, errOut := runCLI(t, "sign-listing", "--keystore", "x", "--seed", "s", "--price", "1")
	if code == 0 || !strings.Contains(errOut, "--payload-file") {
		t.Fatalf("expected payload requirement, got %d %q", code, errOut)
	}
}

func TestTokenSubjectClaim(t *testing.T) {
	t.Setenv("CLI_TEST_SECRET", "s3cret")
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	bech, err := crypto.EncodeAddress(key.Address())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	code, out, errOut := runCLI(t, "token", "--subject", bech, "--secret-env", "CLI_TEST_SECRET", "--issuer", "tests")
	if code != 0 {
		t.Fatalf("token failed: %s", errOut)
	}
	parsed, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != key.Address().Hex() || claims["iss"] != "tests" {
		t.Fatalf("unexpected claims %v", claims)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("CLI_TEST_SECRET", "")
	code, _, errOut := runCLI(t, "token", "--subject", "0x1111111111111111111111111111111111111111", "--secret-env", "CLI_TEST_SECRET")
	if code == 0 || !strings.Contains(errOut, "CLI_TEST_SECRET") {
		t.Fatalf("expected missing secret error, got %q", errOut)
	}
}

func TestCallSendsBearerAndPrintsResult(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &req)
		gotMethod = req.Method
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer srv.Close()

	code, out, errOut := runCLI(t, "--rpc", srv.URL, "--token", "abc", "call", "--auth", "market_now")
	if code != 0 {
		t.Fatalf("call failed: %s", errOut)
	}
	if gotAuth != "Bearer abc" || gotMethod != "market_now" {
		t.Fatalf("unexpected request auth=%q method=%q", gotAuth, gotMethod)
	}
	if strings.TrimSpace(out) != `{"ok":true}` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCallReportsRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":6002,"message":"order already settled"}}`))
	}))
	defer srv.Close()

	code, _, errOut := runCLI(t, "--rpc="+srv.URL, "call", "market_getOrder", `{"address":"0x01"}`)
	if code != 1 || !strings.Contains(errOut, "RPC error 6002") {
		t.Fatalf("expected rpc error surfaced, got %d %q", code, errOut)
	}
}

func TestCallRejectsInvalidParams(t *testing.T) {
	code, _, errOut := runCLI(t, "call", "market_now", "{not json")
	if code != 1 || !strings.Contains(errOut, "valid JSON") {
		t.Fatalf("expected invalid JSON rejected, got %q", errOut)
	}
}

func TestDeriveMatchesLedger(t *testing.T) {
	seller := "0x2222222222222222222222222222222222222222"
	code, out, errOut := runCLI(t, "derive", "--kind", "listing", "--owner", seller, "--seed", "lamp-1")
	if code != 0 {
		t.Fatalf("derive failed: %s", errOut)
	}
	var got market.Derivation
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	owner, _ := crypto.ParseAddress(seller)
	want, err := market.ListingAddress(owner, crypto.Keccak256([]byte("lamp-1")))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got != want {
		t.Fatalf("derivation mismatch: %+v vs %+v", got, want)
	}
}

func TestDeriveRejectsBadOwner(t *testing.T) {
	code, _, errOut := runCLI(t, "derive", "--kind", "listing", "--owner", "zzz")
	if code != 1 || !strings.Contains(errOut, "--owner") {
		t.Fatalf("expected owner rejected, got %q", errOut)
	}
}

func TestExportEventsWritesParquet(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "events.db")
	db, err := indexer.Open(dsn)
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	ix, err := indexer.New(db, nil)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	if err := ix.Record(context.Background(), &types.Event{Type: "market.order.created", Attributes: map[string]string{"order": "0x01"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = ix.Close()

	out := filepath.Join(dir, "events.parquet")
	code, stdout, errOut := runCLI(t, "export-events", "--dsn", dsn, "--out", out)
	if code != 0 {
		t.Fatalf("export failed: %s", errOut)
	}
	if !strings.Contains(stdout, "Exported 1 events") {
		t.Fatalf("unexpected output %q", stdout)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("parquet file missing: %v", err)
	}
}

func TestExportEventsRequiresFlags(t *testing.T) {
	code, _, errOut := runCLI(t, "export-events", "--out", "x.parquet")
	if code == 0 || !strings.Contains(errOut, "--dsn and --out are required") {
		t.Fatalf("expected usage error, got %d %q", code, errOut)
	}
}
