package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/native/vault"
)

// CreateContestParams describes a new contest funded from the reward vault.
type CreateContestParams struct {
	Seed        types.Hash `json:"seed"`
	PayloadHash types.Hash `json:"payloadHash"`
	Deadline    int64      `json:"deadline"`
	Prize       uint64     `json:"prize"`
}

// SubmitEntryParams describes a contest submission.
type SubmitEntryParams struct {
	Contest     types.Address `json:"contest"`
	EntrySeed   types.Hash    `json:"entrySeed"`
	PayloadHash types.Hash    `json:"payloadHash"`
}

// ResolveContestParams names the winning entry and where the prize is paid.
// Destination must be the winner, and the winner must be the entry's
// contestant.
type ResolveContestParams struct {
	Contest     types.Address `json:"contest"`
	EntrySeed   types.Hash    `json:"entrySeed"`
	Winner      types.Address `json:"winner"`
	Destination types.Address `json:"destination"`
	Score       uint64        `json:"score"`
}

// CreateContest locks prize from the reward vault into a new contest escrow.
// The creator pays the contest's storage deposit.
func (e *Engine) CreateContest(creator types.Address, params CreateContestParams) (*Contest, error) {
	var out *Contest
	err := e.execute("create_contest", func(st State, ctx *opContext) error {
		if params.Prize == 0 {
			return ErrInvalidPrizeAmount
		}
		if params.Deadline <= ctx.now {
			return fmt.Errorf("%w: deadline %d is not after %d", ErrContestDeadlinePassed, params.Deadline, ctx.now)
		}
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if _, err := loadVault(st, cfg.RewardVault, TagReward); err != nil {
			return err
		}
		pool, err := vault.Balance(st, cfg.RewardVault)
		if err != nil {
			return err
		}
		if pool < params.Prize {
			return fmt.Errorf("%w: reward vault holds %d, prize is %d", ErrEscrowBalanceTooLow, pool, params.Prize)
		}
		d, err := ContestAddress(creator, params.Seed)
		if err != nil {
			return err
		}
		contest := &Contest{
			Address:     d.Address,
			Creator:     creator,
			RewardPool:  cfg.RewardVault,
			Deadline:    params.Deadline,
			Seed:        params.Seed,
			PayloadHash: params.PayloadHash,
			Prize:       params.Prize,
			Bump:        d.Bump,
		}
		if err := createRecord(st, creator, contest.Address, KindContest, ContestSize, contestLayout(contest)); err != nil {
			return err
		}
		if err := vault.TransferAboveFloor(st, cfg.RewardVault, contest.Address, params.Prize, st.MinimumBalance(VaultSize)); err != nil {
			return err
		}
		out = contest
		ctx.emit(NewContestCreatedEvent(contest))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitContestEntry records an entry with score zero. Entries are accepted up
// to and including the deadline.
func (e *Engine) SubmitContestEntry(contestant types.Address, params SubmitEntryParams) (*Entry, error) {
	var out *Entry
	err := e.execute("submit_contest_entry", func(st State, ctx *opContext) error {
		contest, err := loadContest(st, params.Contest)
		if err != nil {
			return err
		}
		if contest.Settled {
			return fmt.Errorf("%w: %s", ErrContestResolved, contest.Address.Hex())
		}
		if ctx.now > contest.Deadline {
			return fmt.Errorf("%w: deadline was %d", ErrContestDeadlinePassed, contest.Deadline)
		}
		d, err := EntryAddress(contest.Address, params.EntrySeed)
		if err != nil {
			return err
		}
		entry := &Entry{
			Address:     d.Address,
			Contestant:  contestant,
			Contest:     contest.Address,
			Seed:        params.EntrySeed,
			PayloadHash: params.PayloadHash,
			Bump:        d.Bump,
		}
		if err := createRecord(st, contestant, entry.Address, KindEntry, EntrySize, entryLayout(entry)); err != nil {
			return err
		}
		out = entry
		ctx.emit(NewContestEntrySubmittedEvent(entry))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveContest pays the whole prize to the winning entry's contestant,
// writes the score onto that entry and destroys the contest, returning its
// deposit to the reward vault. Only the marketplace authority may resolve.
func (e *Engine) ResolveContest(authority types.Address, params ResolveContestParams) error {
	return e.execute("resolve_contest", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, authority); err != nil {
			return err
		}
		contest, err := loadContest(st, params.Contest)
		if err != nil {
			return err
		}
		if contest.Settled {
			return fmt.Errorf("%w: %s", ErrContestResolved, contest.Address.Hex())
		}
		if ctx.now < contest.Deadline {
			return fmt.Errorf("%w: deadline is %d", ErrContestDeadlineNotReached, contest.Deadline)
		}
		d, err := EntryAddress(contest.Address, params.EntrySeed)
		if err != nil {
			return err
		}
		entry, err := loadEntry(st, d.Address)
		if err != nil {
			return err
		}
		if params.Winner != params.Destination || params.Winner != entry.Contestant {
			return fmt.Errorf("%w: winner %s, destination %s, contestant %s",
				ErrWinnerAccountMismatch, params.Winner.Hex(), params.Destination.Hex(), entry.Contestant.Hex())
		}
		prize := contest.Prize
		if prize == 0 {
			return ErrInvalidPrizeAmount
		}
		escrow, err := vault.Balance(st, contest.Address)
		if err != nil {
			return err
		}
		if escrow < prize {
			return fmt.Errorf("%w: contest holds %d, prize is %d", ErrEscrowBalanceTooLow, escrow, prize)
		}
		if err := vault.Transfer(st, contest.Address, params.Destination, prize); err != nil {
			return err
		}
		contest.Prize = 0
		contest.Settled = true
		entry.Score = params.Score
		if err := st.RecordPut(entry.Address, KindEntry, entryLayout(entry)); err != nil {
			return err
		}
		if _, err := vault.CloseRecord(st, contest.Address, cfg.RewardVault); err != nil {
			return err
		}
		ctx.emit(NewContestResolvedEvent(contest, entry, prize))
		e.metrics.RecordSettlement("contest", "native", prize, 0)
		return nil
	})
}
