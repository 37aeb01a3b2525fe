package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/native/market"
)

func parseOptionalAddress(value string) (types.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return types.Address{}, nil
	}
	return crypto.ParseAddress(trimmed)
}

func runDerive(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var kind, owner, seed, listing, contest, mint string
	fs.StringVar(&kind, "kind", "", "record kind: config, treasury, reward, whitelist, listing, order, plan, instance, contest, entry, mint, token_account")
	fs.StringVar(&owner, "owner", "", "seller, buyer, creator, subscriber or mint authority")
	fs.StringVar(&seed, "seed", "", "record seed (32-byte hex or any text)")
	fs.StringVar(&listing, "listing", "", "listing address (order)")
	fs.StringVar(&contest, "contest", "", "contest address (entry)")
	fs.StringVar(&mint, "mint", "", "mint address (token_account)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(kind) == "" {
		fmt.Fprintln(stderr, "Error: --kind is required")
		return 1
	}
	var deriveArgs market.DeriveArgs
	var err error
	for _, field := range []struct {
		flag  string
		value string
		dst   *types.Address
	}{
		{"owner", owner, &deriveArgs.Owner},
		{"listing", listing, &deriveArgs.Listing},
		{"contest", contest, &deriveArgs.Contest},
		{"mint", mint, &deriveArgs.Mint},
	} {
		if *field.dst, err = parseOptionalAddress(field.value); err != nil {
			fmt.Fprintf(stderr, "Error: invalid --%s: %v\n", field.flag, err)
			return 1
		}
	}
	if strings.TrimSpace(seed) != "" {
		deriveArgs.Seed = parseSeed(seed)
	}
	d, err := market.DeriveRecord(kind, deriveArgs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
