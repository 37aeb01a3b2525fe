package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/native/fees"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// VaultKind selects one of the administrator-withdrawable vaults.
type VaultKind string

const (
	VaultTreasury VaultKind = "treasury"
	VaultReward   VaultKind = "reward"
)

// AdminConfigInput carries the mutable config fields.
type AdminConfigInput struct {
	FeeBps      uint16        `json:"feeBps"`
	Treasury    types.Address `json:"treasury"`
	RewardVault types.Address `json:"rewardVault"`
}

// WithdrawTokenParams describes a token withdrawal from a vault.
type WithdrawTokenParams struct {
	Mint                    types.Address `json:"mint"`
	VaultTokenAccount       types.Address `json:"vaultTokenAccount"`
	DestinationTokenAccount types.Address `json:"destinationTokenAccount"`
	Program                 types.Address `json:"program"`
	Amount                  uint64        `json:"amount"`
}

func requireAuthority(cfg Config, caller types.Address) error {
	if caller != cfg.Authority {
		return fmt.Errorf("%w: %s is not %s", ErrInvalidAuthority, caller.Hex(), cfg.Authority.Hex())
	}
	return nil
}

// InitializeConfig creates the config, treasury vault, reward vault and token
// whitelist singletons. The authority pays every storage deposit.
func (e *Engine) InitializeConfig(authority types.Address, feeBps uint16) (*Config, error) {
	var out Config
	err := e.execute("initialize_config", func(st State, ctx *opContext) error {
		if err := fees.ValidateBps(feeBps); err != nil {
			return err
		}
		cfgAddr, err := ConfigAddress()
		if err != nil {
			return err
		}
		exists, err := st.RecordExists(cfgAddr.Address)
		if err != nil {
			return err
		}
		if exists {
			return ErrConfigInitialized
		}
		treasury, err := TreasuryVaultAddress()
		if err != nil {
			return err
		}
		reward, err := RewardVaultAddress()
		if err != nil {
			return err
		}
		whitelist, err := WhitelistAddress()
		if err != nil {
			return err
		}
		cfg := Config{
			Address:     cfgAddr.Address,
			Authority:   authority,
			Treasury:    treasury.Address,
			FeeBps:      feeBps,
			RewardVault: reward.Address,
			Whitelist:   whitelist.Address,
			Bump:        cfgAddr.Bump,
		}
		if err := createRecord(st, authority, cfg.Address, KindConfig, ConfigSize, storedConfig{
			Authority:   cfg.Authority,
			Treasury:    cfg.Treasury,
			FeeBps:      cfg.FeeBps,
			RewardVault: cfg.RewardVault,
			Whitelist:   cfg.Whitelist,
			Bump:        cfg.Bump,
		}); err != nil {
			return err
		}
		for _, v := range []Derivation{treasury, reward} {
			if err := createRecord(st, authority, v.Address, KindVault, VaultSize, storedVault{Bump: v.Bump}); err != nil {
				return err
			}
		}
		if err := createRecord(st, authority, whitelist.Address, KindWhitelist, WhitelistSize, storedWhitelist{
			Authority: authority,
			Bump:      whitelist.Bump,
		}); err != nil {
			return err
		}
		out = cfg
		ctx.emit(NewConfigInitializedEvent(cfg))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAdminConfig replaces the fee rate and vault addresses.
func (e *Engine) SetAdminConfig(authority types.Address, input AdminConfigInput) error {
	return e.execute("set_admin_config", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, authority); err != nil {
			return err
		}
		if err := fees.ValidateBps(input.FeeBps); err != nil {
			return err
		}
		cfg.FeeBps = input.FeeBps
		cfg.Treasury = input.Treasury
		cfg.RewardVault = input.RewardVault
		if err := storeConfig(st, cfg); err != nil {
			return err
		}
		ctx.emit(NewConfigUpdatedEvent(cfg))
		return nil
	})
}

// UpdateWhitelist adds or removes a token mint. Removing an absent mint is a
// no-op.
func (e *Engine) UpdateWhitelist(authority, mint types.Address, add bool) error {
	return e.execute("update_whitelist", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		wl, err := loadWhitelist(st, cfg)
		if err != nil {
			return err
		}
		if authority != wl.Authority {
			return fmt.Errorf("%w: %s does not administer the whitelist", ErrInvalidAuthority, authority.Hex())
		}
		if add {
			if wl.Contains(mint) {
				return fmt.Errorf("%w: %s", ErrTokenAlreadyWhitelisted, mint.Hex())
			}
			if len(wl.AllowedMints) >= MaxWhitelistMints {
				return ErrWhitelistFull
			}
			wl.AllowedMints = append(wl.AllowedMints, mint)
		} else {
			kept := wl.AllowedMints[:0]
			for _, m := range wl.AllowedMints {
				if m != mint {
					kept = append(kept, m)
				}
			}
			wl.AllowedMints = kept
		}
		if err := storeWhitelist(st, wl); err != nil {
			return err
		}
		ctx.emit(NewWhitelistUpdatedEvent(wl, mint, add))
		return nil
	})
}

func vaultTarget(cfg Config, kind VaultKind) (types.Address, string, error) {
	switch kind {
	case VaultTreasury:
		return cfg.Treasury, TagTreasury, nil
	case VaultReward:
		return cfg.RewardVault, TagReward, nil
	default:
		return types.Address{}, "", fmt.Errorf("market: unknown vault %q", kind)
	}
}

// WithdrawNative moves native balance out of a vault. The vault must keep its
// rent-exempt minimum.
func (e *Engine) WithdrawNative(authority types.Address, kind VaultKind, destination types.Address, amount uint64) error {
	return e.execute("withdraw_"+string(kind)+"_native", func(st State, ctx *opContext) error {
		if amount == 0 {
			return ErrAmountMustBePositive
		}
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, authority); err != nil {
			return err
		}
		addr, tag, err := vaultTarget(cfg, kind)
		if err != nil {
			return err
		}
		if _, err := loadVault(st, addr, tag); err != nil {
			return err
		}
		balance, err := vault.Balance(st, addr)
		if err != nil {
			return err
		}
		if balance < amount {
			return fmt.Errorf("%w: %s vault holds %d", ErrEscrowBalanceTooLow, kind, balance)
		}
		if err := vault.TransferAboveFloor(st, addr, destination, amount, st.MinimumBalance(VaultSize)); err != nil {
			return err
		}
		ctx.emit(NewVaultWithdrawnEvent(addr, addr, destination, types.NativeMint, amount))
		return nil
	})
}

// WithdrawTreasuryNative withdraws native balance from the treasury vault.
func (e *Engine) WithdrawTreasuryNative(authority, destination types.Address, amount uint64) error {
	return e.WithdrawNative(authority, VaultTreasury, destination, amount)
}

// WithdrawRewardNative withdraws native balance from the reward vault.
func (e *Engine) WithdrawRewardNative(authority, destination types.Address, amount uint64) error {
	return e.WithdrawNative(authority, VaultReward, destination, amount)
}

// WithdrawToken moves tokens out of a vault-owned token account. The vault
// authorizes the transfer through its derivation.
func (e *Engine) WithdrawToken(authority types.Address, kind VaultKind, params WithdrawTokenParams) error {
	return e.execute("withdraw_"+string(kind)+"_token", func(st State, ctx *opContext) error {
		if params.Amount == 0 {
			return ErrAmountMustBePositive
		}
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, authority); err != nil {
			return err
		}
		addr, tag, err := vaultTarget(cfg, kind)
		if err != nil {
			return err
		}
		v, err := loadVault(st, addr, tag)
		if err != nil {
			return err
		}
		if _, err := token.GetMint(st, params.Mint); err != nil {
			return err
		}
		accounts, err := validateTokenAccounts(st, params.Mint, params.Program,
			expectedTokenAccount{role: "vault", address: params.VaultTokenAccount, owner: addr})
		if err != nil {
			return err
		}
		dest, err := token.GetAccount(st, params.DestinationTokenAccount)
		if err != nil {
			return err
		}
		if dest.Mint != params.Mint {
			return fmt.Errorf("%w: destination holds %s", ErrTokenAccountMintMismatch, dest.Mint.Hex())
		}
		if accounts["vault"].Amount < params.Amount {
			return fmt.Errorf("%w: %s vault token account holds %d", ErrEscrowBalanceTooLow, kind, accounts["vault"].Amount)
		}
		signer := token.DerivedAuthority(tag, v.Bump)
		if err := token.Transfer(st, params.VaultTokenAccount, params.DestinationTokenAccount, signer, params.Amount); err != nil {
			return err
		}
		ctx.emit(NewVaultWithdrawnEvent(addr, params.VaultTokenAccount, params.DestinationTokenAccount, params.Mint, params.Amount))
		return nil
	})
}

// WithdrawTreasuryToken withdraws tokens from the treasury vault.
func (e *Engine) WithdrawTreasuryToken(authority types.Address, params WithdrawTokenParams) error {
	return e.WithdrawToken(authority, VaultTreasury, params)
}

// WithdrawRewardToken withdraws tokens from the reward vault.
func (e *Engine) WithdrawRewardToken(authority types.Address, params WithdrawTokenParams) error {
	return e.WithdrawToken(authority, VaultReward, params)
}
