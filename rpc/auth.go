package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketledger/core/types"
)

// JWTConfig controls bearer authentication for mutating methods. Tokens are
// HS256-signed and name the acting address in the "sub" claim.
type JWTConfig struct {
	Secret    []byte
	Issuer    string
	ClockSkew time.Duration
}

type authenticator struct {
	cfg JWTConfig
}

func newAuthenticator(cfg JWTConfig) *authenticator {
	return &authenticator{cfg: cfg}
}

// caller resolves the authenticated address for r.
func (a *authenticator) caller(r *http.Request) (types.Address, *RPCError) {
	if a == nil || len(a.cfg.Secret) == 0 {
		return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	claims, err := a.parseToken(token)
	if err != nil {
		return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
	}
	if a.cfg.Issuer != "" {
		if iss, _ := claims["iss"].(string); iss != a.cfg.Issuer {
			return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: "issuer mismatch"}
		}
	}
	sub, _ := claims["sub"].(string)
	addr, err := types.ParseHexAddress(sub)
	if err != nil {
		return types.Address{}, &RPCError{Code: codeUnauthorized, Message: "token subject is not an address", Data: sub}
	}
	return addr, nil
}

func (a *authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.cfg.Secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

// IssueToken mints a bearer token for subject valid for ttl.
func IssueToken(secret []byte, issuer string, subject types.Address, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("rpc: jwt secret required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("rpc: token ttl must be positive, got %s", ttl)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject.Hex(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
