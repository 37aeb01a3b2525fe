// Package market implements the escrow and settlement engine: listings,
// orders, subscriptions and contests settled over native balances or token
// accounts.
package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketledger/core/events"
	"marketledger/core/state"
	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/observability"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine executes marketplace operations against the ledger. Every exported
// mutating method runs as one atomic ledger transition; events are emitted
// only after the transition commits.
type Engine struct {
	state    *state.Manager
	emitter  events.Emitter
	verifier crypto.Verifier
	logger   *slog.Logger
	metrics  *observability.MarketMetrics
	nowFn    func() int64

	clockMu sync.Mutex
	lastNow int64
}

// NewEngine creates an engine bound to the provided state manager.
func NewEngine(st *state.Manager) *Engine {
	return &Engine{
		state:    st,
		emitter:  events.NoopEmitter{},
		verifier: crypto.Secp256k1Verifier{},
		logger:   slog.Default(),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.clockMu.Lock()
	e.nowFn = now
	e.lastNow = 0
	e.clockMu.Unlock()
}

// SetVerifier replaces the off-chain signature verifier.
func (e *Engine) SetVerifier(v crypto.Verifier) {
	if v == nil {
		v = crypto.Secp256k1Verifier{}
	}
	e.verifier = v
}

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetMetrics enables prometheus instrumentation.
func (e *Engine) SetMetrics(m *observability.MarketMetrics) { e.metrics = m }

// now returns the engine clock. It never runs backwards even if the wall
// clock does.
func (e *Engine) now() int64 {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	ts := e.nowFn()
	if ts < e.lastNow {
		ts = e.lastNow
	}
	e.lastNow = ts
	return ts
}

// Now exposes the engine clock.
func (e *Engine) Now() int64 { return e.now() }

// opContext carries what a single operation needs besides the ledger.
type opContext struct {
	now    int64
	events []*types.Event
}

func (c *opContext) emit(evt *types.Event) {
	if evt != nil {
		c.events = append(c.events, evt)
	}
}

// execute runs fn as one atomic transition. Errors are translated onto the
// marketplace taxonomy; nothing fn wrote survives a failure.
func (e *Engine) execute(operation string, fn func(st State, ctx *opContext) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	start := time.Now()
	ctx := &opContext{now: e.now()}
	err := e.state.Atomic(func(tx *state.Tx) error {
		return fn(tx, ctx)
	})
	err = translate(err)
	e.observe(operation, err, time.Since(start))
	if err != nil {
		return err
	}
	for _, evt := range ctx.events {
		e.emitter.Emit(marketEvent{evt: evt})
	}
	return nil
}

// view runs fn against a read-only snapshot.
func (e *Engine) view(fn func(st State) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return translate(e.state.View(func(tx *state.Tx) error {
		return fn(tx)
	}))
}

func (e *Engine) observe(operation string, err error, duration time.Duration) {
	if err == nil {
		e.metrics.ObserveOperation(operation, "", 0, duration)
		e.logger.Info("market operation committed", slog.String("operation", operation), slog.Duration("duration", duration))
		return
	}
	category := CategoryOf(err)
	code := CodeOf(err)
	e.metrics.ObserveOperation(operation, string(category), code, duration)
	level := slog.LevelWarn
	if category == CategoryInternal {
		level = slog.LevelError
	}
	e.logger.Log(context.Background(), level, "market operation rejected",
		slog.String("operation", operation),
		slog.String("category", string(category)),
		slog.Int("code", code),
		slog.String("error", err.Error()))
}

func assetPath(currency types.Address) string {
	if currency.IsNative() {
		return "native"
	}
	return "token"
}
