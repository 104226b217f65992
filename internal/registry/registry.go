package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/angeloszaimis/breakerbox/internal/circuitbreaker"
)

// DefaultBox is the namespace used when callers don't pick one.
const DefaultBox = "default"

const defaultQueueSize = 64

type StatusCode int

const (
	StatusOk StatusCode = iota
	StatusTripped
	StatusNotFound
)

func (c StatusCode) String() string {
	switch c {
	case StatusOk:
		return "ok"
	case StatusTripped:
		return "tripped"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Status is the answer to "may I call this dependency?". A disabled breaker
// is reported as tripped; callers cannot tell the two apart through status.
type Status struct {
	Name string
	Code StatusCode
}

// Declaration is one (name, config) pair from a bulk-declaration source,
// typically the startup config file.
type Declaration struct {
	Name   string
	Config circuitbreaker.Config
}

type opKind int

const (
	opRegister opKind = iota
	opRemove
	opGetConfig
	opRegistered
	opStatus
	opStatusAll
	opIncrement
	opReset
	opDisable
	opEnable
)

type command struct {
	kind  opKind
	name  string
	cfg   circuitbreaker.Config
	reply chan response
}

type response struct {
	err      error
	status   Status
	config   circuitbreaker.Config
	configs  map[string]circuitbreaker.Config
	statuses map[string]Status
}

// Registry owns the breakers of one box. All access goes through the worker
// goroutine started by Start; the exported methods are thin blocking
// request/response wrappers around the command channel.
type Registry struct {
	box    string
	logger *slog.Logger
	clock  circuitbreaker.Clock
	events chan<- Event

	cmds     chan command
	done     chan struct{} // closed by Stop to request shutdown
	stopped  chan struct{} // closed by the worker once it has exited
	stopOnce sync.Once

	// breakers is keyed by the composite box+name key and touched only by
	// the worker goroutine.
	breakers map[string]*circuitbreaker.Breaker
}

type Option func(*Registry)

// WithLogger sets the logger for worker lifecycle and bulk-init warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock injects the clock handed to every breaker created in this box.
func WithClock(clock circuitbreaker.Clock) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithEvents sets the channel breaker events are emitted on. Sends never
// block; events are dropped when the channel is full.
func WithEvents(events chan<- Event) Option {
	return func(r *Registry) {
		r.events = events
	}
}

// WithQueueSize sets the command queue depth. Callers beyond it wait in FIFO
// order for the worker.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.cmds = make(chan command, n)
		}
	}
}

//nolint:gochecknoglobals // conventional default box via sync.OnceValue
var defaultRegistry = sync.OnceValue(func() *Registry {
	return Start(DefaultBox)
})

// Default returns the process-wide default box, starting it on first call.
func Default() *Registry {
	return defaultRegistry()
}

// Start spawns the worker for the named box and returns its handle. An empty
// box name maps to DefaultBox.
func Start(box string, opts ...Option) *Registry {
	if box == "" {
		box = DefaultBox
	}

	r := &Registry{
		box:      box,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		breakers: make(map[string]*circuitbreaker.Breaker),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = circuitbreaker.RealClock{}
	}
	if r.cmds == nil {
		r.cmds = make(chan command, defaultQueueSize)
	}

	go r.run()

	return r
}

// Box returns the namespace identifier this registry serves.
func (r *Registry) Box() string {
	return r.box
}

// Stop shuts the worker down. Commands already queued are still answered;
// later calls fail with ErrStopped. Stop is idempotent.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	<-r.stopped
}

// Register installs a breaker under name, replacing any previous entry with
// a fresh CLOSED breaker. Returns circuitbreaker.ErrInvalidConfig when the
// configuration is rejected; nothing is registered in that case.
func (r *Registry) Register(name string, cfg circuitbreaker.Config) error {
	return r.dispatch(command{kind: opRegister, name: name, cfg: cfg}).err
}

// Remove deletes the named breaker.
func (r *Registry) Remove(name string) error {
	return r.dispatch(command{kind: opRemove, name: name}).err
}

// GetConfig returns the configuration registered under name, or ErrNotFound.
func (r *Registry) GetConfig(name string) (circuitbreaker.Config, error) {
	resp := r.dispatch(command{kind: opGetConfig, name: name})
	return resp.config, resp.err
}

// Registered returns a snapshot of every name and its configuration.
func (r *Registry) Registered() map[string]circuitbreaker.Config {
	return r.dispatch(command{kind: opRegistered}).configs
}

// Status reports whether the named breaker currently allows traffic. An
// unknown name yields StatusNotFound; a stopped box reports every name as
// not found.
func (r *Registry) Status(name string) Status {
	resp := r.dispatch(command{kind: opStatus, name: name})
	if resp.err != nil {
		return Status{Name: name, Code: StatusNotFound}
	}
	return resp.status
}

// StatusAll reports the status of every registered breaker. Each entry's
// auto-reset check runs at its own access time; the snapshot is not atomic
// across the box.
func (r *Registry) StatusAll() map[string]Status {
	return r.dispatch(command{kind: opStatusAll}).statuses
}

// IncrementError records one failure against the named breaker.
func (r *Registry) IncrementError(name string) error {
	return r.dispatch(command{kind: opIncrement, name: name}).err
}

// Reset forces an open breaker closed. Disabled breakers ignore it.
func (r *Registry) Reset(name string) error {
	return r.dispatch(command{kind: opReset, name: name}).err
}

// Disable trips the named breaker until an explicit Enable.
func (r *Registry) Disable(name string) error {
	return r.dispatch(command{kind: opDisable, name: name}).err
}

// Enable closes the named breaker and clears its history.
func (r *Registry) Enable(name string) error {
	return r.dispatch(command{kind: opEnable, name: name}).err
}

// RegisterAll registers each declaration in order. A malformed declaration
// (empty name or rejected config) is logged and skipped; the remaining
// declarations still register. Returns the number registered.
func (r *Registry) RegisterAll(decls []Declaration) int {
	registered := 0

	for _, d := range decls {
		if err := r.Register(d.Name, d.Config); err != nil {
			r.logger.Warn("skipping breaker declaration",
				slog.String("box", r.box),
				slog.String("breaker", d.Name),
				slog.Any("err", err))
			continue
		}
		registered++
	}

	return registered
}

func (r *Registry) dispatch(cmd command) response {
	cmd.reply = make(chan response, 1)

	select {
	case r.cmds <- cmd:
	case <-r.stopped:
		return response{err: ErrStopped}
	}

	select {
	case resp := <-cmd.reply:
		return resp
	case <-r.stopped:
		// The worker drains the queue before exiting, so a reply may still
		// be waiting.
		select {
		case resp := <-cmd.reply:
			return resp
		default:
			return response{err: ErrStopped}
		}
	}
}

func (r *Registry) run() {
	defer close(r.stopped)

	r.logger.Info("breaker box started", slog.String("box", r.box))
	defer r.logger.Info("breaker box stopped", slog.String("box", r.box))

	for {
		select {
		case cmd := <-r.cmds:
			r.process(cmd)
		case <-r.done:
			r.drain()
			return
		}
	}
}

// drain answers commands already queued at shutdown so no caller is left
// blocked.
func (r *Registry) drain() {
	for {
		select {
		case cmd := <-r.cmds:
			r.process(cmd)
		default:
			return
		}
	}
}

// process isolates each command: a panic is turned into an error reply and
// must not take the worker, or the other breakers in the box, down with it.
func (r *Registry) process(cmd command) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("breaker command panicked",
				slog.String("box", r.box),
				slog.String("breaker", cmd.name),
				slog.Any("panic", rec))
			cmd.reply <- response{err: fmt.Errorf("internal error: %v", rec)}
		}
	}()

	cmd.reply <- r.handle(cmd)
}

func (r *Registry) handle(cmd command) response {
	switch cmd.kind {
	case opRegister:
		return r.handleRegister(cmd.name, cmd.cfg)
	case opRemove:
		return r.handleRemove(cmd.name)
	case opGetConfig:
		return r.handleGetConfig(cmd.name)
	case opRegistered:
		return r.handleRegistered()
	case opStatus:
		return response{status: r.handleStatus(cmd.name)}
	case opStatusAll:
		return r.handleStatusAll()
	case opIncrement:
		return r.handleIncrement(cmd.name)
	case opReset:
		return r.handleReset(cmd.name)
	case opDisable:
		return r.handleDisable(cmd.name)
	case opEnable:
		return r.handleEnable(cmd.name)
	default:
		return response{err: fmt.Errorf("unknown command kind %d", cmd.kind)}
	}
}

func (r *Registry) handleRegister(name string, cfg circuitbreaker.Config) response {
	if name == "" {
		return response{err: ErrEmptyName}
	}

	cb, err := circuitbreaker.New(name, cfg, r.clock)
	if err != nil {
		return response{err: err}
	}

	key := r.key(name)

	prev := circuitbreaker.StateClosed
	old, replaced := r.breakers[key]
	if replaced {
		prev = old.State()
	}

	r.breakers[key] = cb
	r.emit(Event{
		Type:     EventRegistered,
		Breaker:  name,
		Prev:     prev,
		State:    cb.State(),
		Replaced: replaced,
	})

	return response{}
}

func (r *Registry) handleRemove(name string) response {
	key := r.key(name)

	cb, ok := r.breakers[key]
	if !ok {
		return response{err: &NotFoundError{Name: name}}
	}

	delete(r.breakers, key)
	r.emit(Event{
		Type:    EventRemoved,
		Breaker: name,
		Prev:    cb.State(),
		State:   cb.State(),
	})

	return response{}
}

func (r *Registry) handleGetConfig(name string) response {
	cb, ok := r.breakers[r.key(name)]
	if !ok {
		return response{err: ErrNotFound}
	}

	return response{config: cb.Config()}
}

func (r *Registry) handleRegistered() response {
	configs := make(map[string]circuitbreaker.Config, len(r.breakers))
	for _, cb := range r.breakers {
		configs[cb.Name()] = cb.Config()
	}

	return response{configs: configs}
}

func (r *Registry) handleStatus(name string) Status {
	cb, ok := r.breakers[r.key(name)]
	if !ok {
		return Status{Name: name, Code: StatusNotFound}
	}

	return r.ask(cb)
}

func (r *Registry) handleStatusAll() response {
	statuses := make(map[string]Status, len(r.breakers))
	for _, cb := range r.breakers {
		statuses[cb.Name()] = r.ask(cb)
	}

	return response{statuses: statuses}
}

// ask maps the engine verdict to the external status. Disabled surfaces as
// tripped: operators distinguish the two by enabling, not by reading status.
func (r *Registry) ask(cb *circuitbreaker.Breaker) Status {
	wasOpen := cb.State() == circuitbreaker.StateOpen

	switch cb.Ask() {
	case circuitbreaker.VerdictOk:
		if wasOpen {
			r.emit(Event{
				Type:    EventAutoReset,
				Breaker: cb.Name(),
				Prev:    circuitbreaker.StateOpen,
				State:   cb.State(),
			})
		}
		return Status{Name: cb.Name(), Code: StatusOk}
	default:
		return Status{Name: cb.Name(), Code: StatusTripped}
	}
}

func (r *Registry) handleIncrement(name string) response {
	cb, ok := r.breakers[r.key(name)]
	if !ok {
		return response{err: &NotFoundError{Name: name}}
	}

	prev := cb.State()
	cb.RecordFailure()

	r.emit(Event{Type: EventFailureRecorded, Breaker: name, Prev: prev, State: cb.State()})
	if prev == circuitbreaker.StateClosed && cb.State() == circuitbreaker.StateOpen {
		r.emit(Event{Type: EventTripped, Breaker: name, Prev: prev, State: cb.State()})
	}

	return response{}
}

func (r *Registry) handleReset(name string) response {
	cb, ok := r.breakers[r.key(name)]
	if !ok {
		return response{err: &NotFoundError{Name: name}}
	}

	prev := cb.State()
	cb.Reset()
	if prev == circuitbreaker.StateOpen {
		r.emit(Event{Type: EventManualReset, Breaker: name, Prev: prev, State: cb.State()})
	}

	return response{}
}

func (r *Registry) handleDisable(name string) response {
	cb, ok := r.breakers[r.key(name)]
	if !ok {
		return response{err: &NotFoundError{Name: name}}
	}

	prev := cb.State()
	cb.Disable()
	r.emit(Event{Type: EventDisabled, Breaker: name, Prev: prev, State: cb.State()})

	return response{}
}

func (r *Registry) handleEnable(name string) response {
	cb, ok := r.breakers[r.key(name)]
	if !ok {
		return response{err: &NotFoundError{Name: name}}
	}

	prev := cb.State()
	cb.Enable()
	r.emit(Event{Type: EventEnabled, Breaker: name, Prev: prev, State: cb.State()})

	return response{}
}

// key qualifies a breaker name with the box identifier so that identical
// names in different boxes can never alias, even in shared storage. NUL
// can't appear in either part, which keeps the key deterministic and
// collision-free.
func (r *Registry) key(name string) string {
	return r.box + "\x00" + name
}

func (r *Registry) emit(e Event) {
	if r.events == nil {
		return
	}

	e.Box = r.box
	e.Timestamp = r.clock.Now()

	select {
	case r.events <- e:
	default:
	}
}
