package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/native/market"
)

var getenv = os.Getenv

type listingParams struct {
	Seller          types.Address `json:"seller"`
	Seed            types.Hash    `json:"seed"`
	PayloadHash     types.Hash    `json:"payloadHash"`
	Price           uint64        `json:"price"`
	Currency        types.Address `json:"currency"`
	SellerSignature hexutil.Bytes `json:"sellerSignature"`
}

// parseSeed accepts a 32-byte hex value or hashes any other text into one.
func parseSeed(value string) types.Hash {
	trimmed := strings.TrimSpace(value)
	if h, err := types.ParseHash(trimmed); err == nil {
		return h
	}
	return crypto.Keccak256([]byte(trimmed))
}

func runSignListing(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign-listing", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keystorePath, seed, payloadFile, payloadHash, currency string
	var price uint64
	fs.StringVar(&keystorePath, "keystore", "", "seller keystore")
	fs.StringVar(&seed, "seed", "", "listing seed (32-byte hex or any text)")
	fs.StringVar(&payloadFile, "payload-file", "", "off-chain listing document to hash")
	fs.StringVar(&payloadHash, "payload-hash", "", "precomputed payload hash")
	fs.Uint64Var(&price, "price", 0, "listing price")
	fs.StringVar(&currency, "currency", types.NativeMint.Hex(), "currency mint; defaults to native")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(keystorePath) == "" || strings.TrimSpace(seed) == "" {
		fmt.Fprintln(stderr, "Error: --keystore and --seed are required")
		return 1
	}
	if price == 0 {
		fmt.Fprintln(stderr, "Error: --price must be positive")
		return 1
	}
	var digest types.Hash
	switch {
	case payloadFile != "":
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading payload: %v\n", err)
			return 1
		}
		digest = crypto.PayloadHash(data)
	case payloadHash != "":
		h, err := types.ParseHash(payloadHash)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --payload-hash: %v\n", err)
			return 1
		}
		digest = h
	default:
		fmt.Fprintln(stderr, "Error: --payload-file or --payload-hash is required")
		return 1
	}
	mint, err := crypto.ParseAddress(strings.TrimSpace(currency))
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --currency: %v\n", err)
		return 1
	}
	pass, err := newPassphraseSource()()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.LoadFromKeystore(keystorePath, pass)
	if err != nil {
		fmt.Fprintf(stderr, "Error unlocking keystore: %v\n", err)
		return 1
	}
	params := listingParams{
		Seller:      key.Address(),
		Seed:        parseSeed(seed),
		PayloadHash: digest,
		Price:       price,
		Currency:    mint,
	}
	sig, err := crypto.SignMessage(key, market.ListingAuthorizationMessage(params.Seed, params.PayloadHash, params.Price, params.Currency))
	if err != nil {
		fmt.Fprintf(stderr, "Error signing: %v\n", err)
		return 1
	}
	params.SellerSignature = sig
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(params); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
