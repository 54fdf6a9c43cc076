package slaacsvc

import (
	"context"
	"log/slog"
	"math"
	"net/netip"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/slaacd/internal/aghslog"
)

// Engine is the C5 Engine Facade: the per-interface SLAAC state machine
// described by spec.md. One Engine serves one network interface. Engines
// for different interfaces share no state and must not share a [Transport]
// or [Platform].
//
// An Engine's public methods are safe for concurrent use; callers need not
// serialize calls themselves, since timer-driven re-entry (the sweep timer,
// the pacer's send timer, the first-RA timer) happens on its own goroutines.
type Engine struct {
	logger    *slog.Logger
	cfg       Config
	transport Transport
	platform  Platform
	scheduler Scheduler

	onConfigChanged func(Snapshot, ChangeMask)
	onRATimeout     func()

	mu        sync.Mutex
	started   bool
	store     *store
	completer *completer
	pacer     *pacer

	pendingMask ChangeMask
	dhcpLevel   DHCPLevel
	hopLimit    uint8

	iidSet bool
	iid    [8]byte

	firstRATimer Canceler
	sweepTimer   Canceler

	transportCancel context.CancelFunc
}

// NewEngine validates cfg and constructs an idle Engine. onConfigChanged and
// onRATimeout may be nil, in which case the corresponding event is dropped.
func NewEngine(cfg *Config, onConfigChanged func(Snapshot, ChangeMask), onRATimeout func()) (e *Engine, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config: %w")
	}

	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = NewScheduler()
	}

	logger := aghslog.NewForInterface(cfg.Logger, cfg.IfName).With(aghslog.KeyIfIndex, cfg.Ifindex)

	comp := &completer{
		mode:       cfg.AddrGenMode,
		stableType: cfg.StableType,
		networkID:  cfg.NetworkID,
		ifname:     cfg.IfName,
	}

	st := &store{
		maxAddresses: cfg.MaxAddresses,
		completer:    comp,
	}

	e = &Engine{
		logger:          logger,
		cfg:             *cfg,
		transport:       cfg.Transport,
		platform:        cfg.Platform,
		scheduler:       scheduler,
		onConfigChanged: onConfigChanged,
		onRATimeout:     onRATimeout,
		store:           st,
		completer:       comp,
		hopLimit:        DefaultHopLimit,
	}

	// newPacer is given e.mu directly, since its sendTick runs as a
	// Scheduler callback and must serialize against e's own methods.
	e.pacer = newPacer(
		logger,
		cfg.Transport,
		cfg.Platform,
		scheduler,
		cfg.RouterSolicitations,
		int32(cfg.RouterSolicitationInterval/time.Second),
		&e.mu,
	)

	return e, nil
}

// Start begins the engine's operation: it arms the first-RA timeout, starts
// the transport in the background, and solicits the first burst of Router
// Solicitations. It returns errAlreadyStarted if called twice.
func (e *Engine) Start(ctx context.Context) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errAlreadyStarted
	}
	e.started = true

	timeout := e.cfg.firstRATimeout()
	rearm(e.scheduler, &e.firstRATimer, uint32(timeout/time.Second), e.onFirstRATimeout)

	var transportCtx context.Context
	transportCtx, e.transportCancel = context.WithCancel(ctx)
	go e.runTransport(transportCtx)

	e.pacer.solicit(e.platform.Now())

	return nil
}

// runTransport scopes a network-namespace entry around the transport's
// blocking Start call, logging an unexpected exit.
func (e *Engine) runTransport(ctx context.Context) {
	release, err := e.platform.EnterNamespace()
	if err != nil {
		e.logger.Warn("entering namespace for transport start", slogutil.KeyError, err)

		return
	}
	defer release()

	if err = e.transport.Start(ctx); err != nil && ctx.Err() == nil {
		e.logger.Warn("transport stopped", slogutil.KeyError, err)
	}
}

// onFirstRATimeout fires when no Router Advertisement arrived before the
// first-RA timeout.
func (e *Engine) onFirstRATimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel(&e.firstRATimer)

	if e.onRATimeout != nil {
		e.onRATimeout()
	}
}

// AddGateway merges a gateway learned from a Router Advertisement into the
// store. The transport calls this, along with the other Add* methods, for
// every item in an RA before calling [Engine.RAReceived].
func (e *Engine) AddGateway(g Gateway) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.addGateway(g) {
		e.pendingMask |= ChangeGateways
	}
}

// AddAddress merges an autoconfigured address's prefix into the store,
// running the address completer on it first.
func (e *Engine) AddAddress(a Address) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.addAddress(a) {
		e.pendingMask |= ChangeAddresses
	}
}

// AddRoute merges a more-specific route learned from a Route Information
// option into the store.
func (e *Engine) AddRoute(r Route) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.addRoute(r) {
		e.pendingMask |= ChangeRoutes
	}
}

// AddDNSServer merges a recursive DNS server learned from an RDNSS option
// into the store.
func (e *Engine) AddDNSServer(d DNSServer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.addDNSServer(d) {
		e.pendingMask |= ChangeDNSServers
	}
}

// AddDNSDomain merges a DNS search domain learned from a DNSSL option into
// the store.
func (e *Engine) AddDNSDomain(d DNSDomain) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.addDNSDomain(d) {
		e.pendingMask |= ChangeDNSDomains
	}
}

// RAReceived finalizes processing of one Router Advertisement. The
// transport must have already called the Add* methods for every item in
// the RA; initialMask carries structural changes not captured by those
// helpers. dhcpLevel and hopLimit replace the engine's current values
// unconditionally; a dhcpLevel change is folded into the combined mask
// itself, since the transport has no way to know the engine's prior value.
func (e *Engine) RAReceived(now Seconds, initialMask ChangeMask, dhcpLevel DHCPLevel, hopLimit uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel(&e.firstRATimer)
	e.pacer.stop()
	e.pacer.lastErrorMessage = ""

	combined := e.pendingMask | initialMask
	e.pendingMask = 0

	if dhcpLevel != e.dhcpLevel {
		combined |= ChangeDHCPLevel
	}

	e.dhcpLevel = dhcpLevel
	e.hopLimit = hopLimit

	mask, next, solicitDue := e.store.sweep(now, combined)
	if solicitDue {
		e.pacer.solicit(now)
	}

	e.rearmSweep(next, now)

	if mask != 0 {
		e.publish(mask)
	}
}

// DADFailed re-completes every address matching addr: in stable-privacy
// mode this advances the DAD counter and retains the entry at its new
// address; in EUI-64 mode, which has no second candidate, it removes the
// entry. It does not force a new solicitation, since the prefix's lifetime
// is still valid.
func (e *Engine) DADFailed(addr netip.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.store.addresses[:0]
	changed := false

	for _, a := range e.store.addresses {
		if a.Addr != addr {
			kept = append(kept, a)

			continue
		}

		changed = true

		if e.completer.complete(&a) {
			kept = append(kept, a)
		}
	}

	e.store.addresses = kept

	if changed {
		e.publish(ChangeAddresses)
	}
}

// SetIID records a new interface identifier. In stable-privacy mode the IID
// is recorded but no regeneration is needed, since stable-privacy addresses
// never depend on it. In EUI-64 mode, a genuinely new IID flushes every
// existing autoconfigured address and triggers a fresh solicitation, since
// none of them can be salvaged. It reports whether regeneration was
// triggered.
//
// Callers may set the initial IID before Start, so that a Router
// Advertisement racing with startup always sees a usable completer; the
// solicitation is skipped in that case; Start arms its own once the
// transport is actually running, and arming one here first would fire
// against a socket that the transport hasn't opened yet.
func (e *Engine) SetIID(iid [8]byte) (regenerate bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.iidSet && e.iid == iid {
		return false
	}

	e.iid = iid
	e.iidSet = true

	if e.cfg.AddrGenMode == AddrGenStablePrivacy {
		return false
	}

	e.completer.iid = &e.iid

	if e.store.flushAddresses() {
		e.publish(ChangeAddresses)
	}

	if e.started {
		e.pacer.solicit(e.platform.Now())
	}

	return true
}

// Snapshot returns a read-only view of the engine's learned state, per C6.
// The returned Snapshot's slices alias the engine's internal storage and
// must not be retained across any other call on e.
func (e *Engine) Snapshot() (snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.snapshot(e.dhcpLevel, e.hopLimit)
}

// Dispose cancels every pending timer and releases the engine's learned
// state. Afterward, [Engine.Snapshot] reports empty collections; calling any
// other method on e is not supported.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel(&e.firstRATimer)
	cancel(&e.sweepTimer)
	e.pacer.stop()

	if e.transportCancel != nil {
		e.transportCancel()
	}

	e.store.gateways = nil
	e.store.addresses = nil
	e.store.routes = nil
	e.store.dnsServers = nil
	e.store.dnsDomains = nil
}

// rearmSweep arms the sweep timer for next (an absolute monotonic-second
// deadline), or cancels it if next is noNextEvent.
func (e *Engine) rearmSweep(next int64, now Seconds) {
	if next == noNextEvent {
		cancel(&e.sweepTimer)

		return
	}

	delay := next - int64(now)
	if delay < 0 {
		delay = 0
	}
	if delay > math.MaxUint32 {
		delay = math.MaxUint32
	}

	rearm(e.scheduler, &e.sweepTimer, uint32(delay), e.onSweepTimer)
}

// onSweepTimer is the sweep timer's callback: it re-runs the sweep at the
// current time with an empty input mask, reschedules itself, and publishes
// a change event if anything expired.
func (e *Engine) onSweepTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel(&e.sweepTimer)

	now := e.platform.Now()
	mask, next, solicitDue := e.store.sweep(now, 0)
	if solicitDue {
		e.pacer.solicit(now)
	}

	e.rearmSweep(next, now)

	if mask != 0 {
		e.publish(mask)
	}
}

// publish builds a snapshot, logs it in the spec's human-readable format,
// and invokes the config-changed callback. Callers must hold e.mu and must
// not call publish with an empty mask.
func (e *Engine) publish(mask ChangeMask) {
	snap := e.store.snapshot(e.dhcpLevel, e.hopLimit)

	e.logger.Info(logLine(e.cfg.IfName, mask, snap))

	if e.onConfigChanged != nil {
		e.onConfigChanged(snap, mask)
	}
}
