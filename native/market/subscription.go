package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/native/fees"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// ConfigureSubscriptionParams describes a new subscription plan.
type ConfigureSubscriptionParams struct {
	Seed           types.Hash    `json:"seed"`
	PayloadHash    types.Hash    `json:"payloadHash"`
	PricePerPeriod uint64        `json:"pricePerPeriod"`
	PeriodSeconds  int64         `json:"periodSeconds"`
	Currency       types.Address `json:"currency"`
}

// SubscriptionPaymentParams identifies the plan and instance being paid and
// the caller-attested payment time.
type SubscriptionPaymentParams struct {
	Plan         types.Address `json:"plan"`
	InstanceSeed types.Hash    `json:"instanceSeed"`
	NowTs        int64         `json:"nowTs"`
}

// ConfigureSubscription creates an active plan owned by creator. Pricing and
// period are fixed for the life of the plan.
func (e *Engine) ConfigureSubscription(creator types.Address, params ConfigureSubscriptionParams) (*Plan, error) {
	var out *Plan
	err := e.execute("configure_subscription", func(st State, ctx *opContext) error {
		if params.PeriodSeconds <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidPeriod, params.PeriodSeconds)
		}
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAllowedCurrency(st, cfg, params.Currency); err != nil {
			return err
		}
		d, err := PlanAddress(creator, params.Seed)
		if err != nil {
			return err
		}
		plan := &Plan{
			Address:        d.Address,
			Creator:        creator,
			Currency:       params.Currency,
			PricePerPeriod: params.PricePerPeriod,
			PeriodSeconds:  params.PeriodSeconds,
			Seed:           params.Seed,
			PayloadHash:    params.PayloadHash,
			Active:         true,
			Bump:           d.Bump,
		}
		if err := createRecord(st, creator, plan.Address, KindPlan, PlanSize, planLayout(plan)); err != nil {
			return err
		}
		out = plan
		ctx.emit(NewSubscriptionConfiguredEvent(plan))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetSubscriptionActive toggles whether a plan accepts payments. Only the plan
// creator may change it.
func (e *Engine) SetSubscriptionActive(creator, planAddr types.Address, active bool) error {
	return e.execute("set_subscription_active", func(st State, ctx *opContext) error {
		plan, err := loadPlan(st, planAddr)
		if err != nil {
			return err
		}
		if plan.Creator != creator {
			return fmt.Errorf("%w: %s is not the plan creator", ErrInvalidAuthority, creator.Hex())
		}
		plan.Active = active
		if err := st.RecordPut(plan.Address, KindPlan, planLayout(plan)); err != nil {
			return err
		}
		ctx.emit(NewSubscriptionStatusEvent(plan))
		return nil
	})
}

// ProcessSubscriptionPayment charges one period of a plan to subscriber. The
// first payment on a fresh instance is unconditional; later payments need a
// full period since the last one. The fee goes straight to the treasury and
// the rest to the creator.
func (e *Engine) ProcessSubscriptionPayment(subscriber types.Address, params SubscriptionPaymentParams, tokens *SubscriptionTokenAccounts) (*Instance, error) {
	var out *Instance
	err := e.execute("process_subscription_payment", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		plan, err := loadPlan(st, params.Plan)
		if err != nil {
			return err
		}
		if !plan.Active {
			return fmt.Errorf("%w: %s", ErrSubscriptionInactive, plan.Address.Hex())
		}
		d, err := InstanceAddress(subscriber, params.InstanceSeed)
		if err != nil {
			return err
		}
		instance, err := loadInstance(st, d.Address)
		if err != nil {
			return err
		}
		if instance == nil {
			instance = &Instance{
				Address:    d.Address,
				Subscriber: subscriber,
				Plan:       plan.Address,
				Seed:       params.InstanceSeed,
				Bump:       d.Bump,
			}
			if err := createRecord(st, subscriber, instance.Address, KindInstance, InstanceSize, instanceLayout(instance)); err != nil {
				return err
			}
		} else if instance.Plan != plan.Address {
			return fmt.Errorf("%w: instance %s pays %s", ErrInstancePlanMismatch, instance.Address.Hex(), instance.Plan.Hex())
		}
		if instance.LastPaymentAt != 0 {
			nextDue := instance.LastPaymentAt + plan.PeriodSeconds
			if nextDue < instance.LastPaymentAt {
				return ErrMathOverflow
			}
			if params.NowTs < nextDue {
				return fmt.Errorf("%w: next payment due at %d", ErrSubscriptionPeriodNotReached, nextDue)
			}
		}
		split, err := fees.Apply(fees.ApplyInput{Gross: plan.PricePerPeriod, FeeBps: cfg.FeeBps})
		if err != nil {
			return err
		}
		if plan.Currency.IsNative() {
			if err := vault.Transfer(st, subscriber, cfg.Treasury, split.Fee); err != nil {
				return err
			}
			if err := vault.Transfer(st, subscriber, plan.Creator, split.Net); err != nil {
				return err
			}
		} else if err := payWithTokens(st, cfg, plan, subscriber, split, tokens); err != nil {
			return err
		}
		instance.LastPaymentAt = params.NowTs
		if err := st.RecordPut(instance.Address, KindInstance, instanceLayout(instance)); err != nil {
			return err
		}
		out = instance
		ctx.emit(NewSubscriptionPaidEvent(plan, instance, split.Net, split.Fee))
		e.metrics.RecordSettlement("subscription", assetPath(plan.Currency), plan.PricePerPeriod, split.Fee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func payWithTokens(st State, cfg Config, plan *Plan, subscriber types.Address, split fees.ApplyResult, tokens *SubscriptionTokenAccounts) error {
	if tokens == nil {
		return ErrMissingTokenAccounts
	}
	_, err := validateTokenAccounts(st, plan.Currency, tokens.Program,
		expectedTokenAccount{role: "subscriber", address: tokens.Subscriber, owner: subscriber},
		expectedTokenAccount{role: "creator", address: tokens.Creator, owner: plan.Creator},
		expectedTokenAccount{role: "treasury", address: tokens.Treasury, owner: cfg.Treasury},
	)
	if err != nil {
		return err
	}
	signer := token.SignerAuthority(subscriber)
	if split.Fee > 0 {
		if err := token.Transfer(st, tokens.Subscriber, tokens.Treasury, signer, split.Fee); err != nil {
			return err
		}
	}
	if split.Net > 0 {
		if err := token.Transfer(st, tokens.Subscriber, tokens.Creator, signer, split.Net); err != nil {
			return err
		}
	}
	return nil
}
