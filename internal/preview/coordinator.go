// Package preview coordinates live preview updates for editable fields.
// Field changes are debounced, in-flight requests coalesce rapid edits
// down to the latest value, and stale responses are discarded by tagging
// every request with the field's edit generation.
package preview

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/adminstyler/adminstyler/internal/errors"
	"github.com/adminstyler/adminstyler/internal/logging"
)

// DefaultDebounce is the quiet period collapsing bursts of edits into
// one request.
const DefaultDebounce = 300 * time.Millisecond

// DefaultRequestTimeout bounds a single preview round trip
const DefaultRequestTimeout = 10 * time.Second

// State of one editable field
type State int

const (
	StateIdle State = iota
	StatePendingDebounce
	StateInFlight
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingDebounce:
		return "pending-debounce"
	case StateInFlight:
		return "in-flight"
	default:
		return "unknown"
	}
}

// Response is the server's answer to a preview request. SecurityCode is
// empty on success; Errors carries per-setting validation failures that
// may accompany successfully generated CSS.
type Response struct {
	CSS          string
	Errors       []apperrors.FieldError
	SecurityCode apperrors.SecurityCode
}

// Transport carries one changed setting to the preview endpoint
type Transport interface {
	SendPreview(ctx context.Context, nonce, key, value string) (*Response, error)
}

// NonceSource supplies the current nonce and refreshes it after the
// server reports expiry.
type NonceSource interface {
	Nonce(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StyleSink receives generated CSS. Apply replaces the full style block;
// patching is avoided so rule order never drifts.
type StyleSink interface {
	Apply(css string)
}

// Notifier surfaces user-visible failures
type Notifier interface {
	Notify(key, message string)
}

// Config holds coordinator dependencies and tuning
type Config struct {
	Debounce       time.Duration
	RequestTimeout time.Duration
	Transport      Transport
	Nonces         NonceSource
	Sink           StyleSink
	Notifier       Notifier
	Logger         logging.Logger
}

// Coordinator runs the per-field update state machine:
// Idle -> PendingDebounce -> InFlight -> (Applied | Failed) -> Idle.
type Coordinator struct {
	debounce       time.Duration
	requestTimeout time.Duration
	transport      Transport
	nonces         NonceSource
	sink           StyleSink
	notifier       Notifier
	logger         logging.Logger

	mutex  sync.Mutex
	fields map[string]*field
	closed bool
}

type field struct {
	state       State
	timer       *time.Timer
	generation  uint64
	latestValue string
}

// NewCoordinator creates a coordinator. Transport, Nonces and Sink are
// required; Notifier and Logger are optional.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger{}
	}

	return &Coordinator{
		debounce:       cfg.Debounce,
		requestTimeout: cfg.RequestTimeout,
		transport:      cfg.Transport,
		nonces:         cfg.Nonces,
		sink:           cfg.Sink,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger.WithComponent("preview"),
		fields:         make(map[string]*field),
	}
}

// Update records a field change. The request fires after the debounce
// window closes; edits while a request is in flight coalesce, so only
// the latest value is sent when the in-flight request completes.
func (c *Coordinator) Update(key, value string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return
	}

	f := c.fields[key]
	if f == nil {
		f = &field{}
		c.fields[key] = f
	}

	f.generation++
	f.latestValue = value

	if f.state == StateInFlight {
		// Coalesce: completion of the in-flight request sends the
		// latest value; intermediate values are dropped.
		return
	}

	if f.timer != nil {
		f.timer.Stop()
	}
	f.state = StatePendingDebounce
	gen := f.generation
	f.timer = time.AfterFunc(c.debounce, func() {
		c.fire(key, gen)
	})
}

// State reports the current state of a field
func (c *Coordinator) State(key string) State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if f := c.fields[key]; f != nil {
		return f.state
	}
	return StateIdle
}

// Close stops all pending timers. In-flight requests finish but their
// responses are discarded.
func (c *Coordinator) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closed = true
	for _, f := range c.fields {
		if f.timer != nil {
			f.timer.Stop()
		}
	}
}

// fire runs when a field's debounce window closes
func (c *Coordinator) fire(key string, gen uint64) {
	c.mutex.Lock()
	f := c.fields[key]
	if f == nil || c.closed || gen != f.generation || f.state == StateInFlight {
		// A newer edit superseded this timer, or a request is already
		// running; the newer path owns the field now.
		c.mutex.Unlock()
		return
	}
	f.state = StateInFlight
	value := f.latestValue
	sentGen := f.generation
	c.mutex.Unlock()

	c.send(key, value, sentGen)
}

// send performs one preview round trip, retrying once on nonce expiry
func (c *Coordinator) send(key, value string, sentGen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()

	nonce, err := c.nonces.Nonce(ctx)
	if err != nil {
		c.fail(ctx, key, sentGen, err, "preview unavailable")
		return
	}

	resp, err := c.transport.SendPreview(ctx, nonce, key, value)
	if err != nil {
		c.fail(ctx, key, sentGen, err, "preview request failed")
		return
	}

	if resp.SecurityCode == apperrors.CodeNonce {
		// Transparent single retry with a fresh nonce.
		fresh, refreshErr := c.nonces.Refresh(ctx)
		if refreshErr != nil {
			c.fail(ctx, key, sentGen, refreshErr, "preview unavailable")
			return
		}
		resp, err = c.transport.SendPreview(ctx, fresh, key, value)
		if err != nil {
			c.fail(ctx, key, sentGen, err, "preview request failed")
			return
		}
	}

	if resp.SecurityCode != "" {
		// Hard security failure: previous preview CSS stays in place.
		c.fail(ctx, key, sentGen, nil, "permission denied")
		return
	}

	for _, fieldErr := range resp.Errors {
		if c.notifier != nil {
			c.notifier.Notify(fieldErr.Key, fieldErr.Reason)
		}
	}

	c.mutex.Lock()
	f := c.fields[key]
	current := f != nil && sentGen == f.generation && !c.closed
	c.mutex.Unlock()

	if current {
		// Full replace, never patch.
		c.sink.Apply(resp.CSS)
	} else {
		c.logger.Debug(ctx, "discarded stale preview response", "key", key, "generation", sentGen)
	}

	c.finish(key, sentGen)
}

// fail surfaces a user-visible message and completes the request cycle
func (c *Coordinator) fail(ctx context.Context, key string, sentGen uint64, err error, message string) {
	c.logger.Warn(ctx, err, "preview update failed", "key", key)
	if c.notifier != nil {
		c.notifier.Notify(key, message)
	}
	c.finish(key, sentGen)
}

// finish returns the field to Idle, or immediately sends the coalesced
// latest value if newer edits arrived while the request was in flight.
func (c *Coordinator) finish(key string, sentGen uint64) {
	c.mutex.Lock()
	f := c.fields[key]
	if f == nil || c.closed {
		c.mutex.Unlock()
		return
	}

	if f.generation != sentGen {
		value := f.latestValue
		newGen := f.generation
		c.mutex.Unlock()
		c.send(key, value, newGen)
		return
	}

	f.state = StateIdle
	c.mutex.Unlock()
}
