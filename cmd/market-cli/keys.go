package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"marketledger/cmd/internal/passphrase"
	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/rpc"
)

const keystorePassEnv = "MARKET_KEYSTORE_PASS"

var newPassphraseSource = func() func() (string, error) {
	return passphrase.NewSource(keystorePassEnv, "wallet").Get
}

type addressOutput struct {
	Address string `json:"address"`
	Bech32  string `json:"bech32"`
}

func printAddress(w io.Writer, addr types.Address) error {
	b32, err := crypto.EncodeAddress(addr)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(addressOutput{Address: addr.Hex(), Bech32: b32})
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	fs.StringVar(&out, "out", "wallet.keystore", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := newPassphraseSource()()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error generating key: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(strings.TrimSpace(out), key, pass); err != nil {
		fmt.Fprintf(stderr, "Error writing keystore: %v\n", err)
		return 1
	}
	if err := printAddress(stdout, key.Address()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path string
	fs.StringVar(&path, "keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(stderr, "Error: --keystore is required")
		return 1
	}
	addr, err := crypto.KeystoreAddress(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading keystore: %v\n", err)
		return 1
	}
	if err := printAddress(stdout, addr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var subject, keystorePath, secretEnv, issuer string
	var ttl time.Duration
	fs.StringVar(&subject, "subject", "", "address the token acts for (hex or bech32)")
	fs.StringVar(&keystorePath, "keystore", "", "take the subject from this keystore")
	fs.StringVar(&secretEnv, "secret-env", "MARKET_RPC_JWT_SECRET", "environment variable holding the signing secret")
	fs.StringVar(&issuer, "issuer", "marketd", "issuer claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var addr types.Address
	var err error
	switch {
	case strings.TrimSpace(keystorePath) != "":
		addr, err = crypto.KeystoreAddress(keystorePath)
	case strings.TrimSpace(subject) != "":
		addr, err = crypto.ParseAddress(strings.TrimSpace(subject))
	default:
		fmt.Fprintln(stderr, "Error: --subject or --keystore is required")
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error resolving subject: %v\n", err)
		return 1
	}
	secret := strings.TrimSpace(getenv(secretEnv))
	if secret == "" {
		fmt.Fprintf(stderr, "Error: %s is not set\n", secretEnv)
		return 1
	}
	token, err := rpc.IssueToken([]byte(secret), issuer, addr, ttl)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}
