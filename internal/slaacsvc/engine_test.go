package slaacsvc

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, transport Transport, platform *fakePlatform, sched Scheduler) (e *Engine, changes chan ChangeMask) {
	t.Helper()

	changes = make(chan ChangeMask, 16)

	cfg := &Config{
		Logger:                     discardLogger(),
		Platform:                   platform,
		Transport:                  transport,
		Scheduler:                  sched,
		IfName:                     "eth0",
		Ifindex:                    1,
		MaxAddresses:               0,
		RouterSolicitations:        3,
		RouterSolicitationInterval: 4 * time.Second,
	}

	e, err := NewEngine(cfg, func(_ Snapshot, mask ChangeMask) {
		changes <- mask
	}, nil)
	require.NoError(t, err)

	return e, changes
}

func TestEngine_SingleRA(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{started: make(chan struct{})}
	sched := &recordingScheduler{}

	e, changes := newTestEngine(t, transport, platform, sched)
	iid := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	e.completer.iid = &iid

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx))

	e.AddGateway(Gateway{Addr: netip.MustParseAddr("fe80::1"), Timestamp: 0, Lifetime: 1800, Preference: PreferenceMedium})
	e.AddAddress(Address{Addr: netip.MustParseAddr("2001:db8::"), Timestamp: 0, Lifetime: 2592000, Preferred: 604800})
	e.RAReceived(0, 0, DHCPLevelNone, 64)

	select {
	case mask := <-changes:
		assert.True(t, mask.Has(ChangeGateways))
		assert.True(t, mask.Has(ChangeAddresses))
	default:
		t.Fatal("expected a config-changed event")
	}

	snap := e.Snapshot()
	assert.Len(t, snap.Gateways, 1)
	assert.Len(t, snap.Addresses, 1)
}

func TestEngine_WithdrawByZeroLifetime(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, changes := newTestEngine(t, transport, platform, sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	e.AddGateway(Gateway{Addr: netip.MustParseAddr("fe80::1"), Timestamp: 0, Lifetime: 1800})
	e.RAReceived(0, 0, DHCPLevelNone, 64)
	<-changes

	e.AddGateway(Gateway{Addr: netip.MustParseAddr("fe80::1"), Timestamp: 10, Lifetime: 0})
	e.RAReceived(10, 0, DHCPLevelNone, 64)

	mask := <-changes
	assert.True(t, mask.Has(ChangeGateways))
	assert.Empty(t, e.Snapshot().Gateways)
}

func TestEngine_RAReceived_DHCPLevelChangeAlone(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, changes := newTestEngine(t, transport, platform, sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	// No gateways, addresses, routes, or DNS data changes hands here: the
	// RA only flips M/O flags, so the only way this can surface is the
	// engine diffing dhcpLevel against its own prior value.
	e.RAReceived(0, 0, DHCPLevelManaged, 64)

	mask := <-changes
	assert.Equal(t, ChangeDHCPLevel, mask)
	assert.Equal(t, DHCPLevelManaged, e.Snapshot().DHCPLevel)

	// A second RA at the same level must not re-signal the bit.
	e.RAReceived(10, 0, DHCPLevelManaged, 64)

	select {
	case mask = <-changes:
		t.Fatalf("unexpected config-changed event with mask %s", mask)
	default:
	}
}

func TestEngine_DADFailed_EUI64Terminal(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, changes := newTestEngine(t, transport, platform, sched)
	e.cfg.AddrGenMode = AddrGenEUI64
	e.completer.mode = AddrGenEUI64
	iid := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	e.completer.iid = &iid

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	e.AddAddress(Address{Addr: netip.MustParseAddr("2001:db8::"), Timestamp: 0, Lifetime: 1000})
	e.RAReceived(0, 0, DHCPLevelNone, 64)
	<-changes

	snap := e.Snapshot()
	require.Len(t, snap.Addresses, 1)
	completedAddr := snap.Addresses[0].Addr

	e.DADFailed(completedAddr)

	mask := <-changes
	assert.True(t, mask.Has(ChangeAddresses))
	assert.Empty(t, e.Snapshot().Addresses, "EUI-64 has no second candidate; DAD failure must remove the address")
}

func TestEngine_DADFailed_StablePrivacyRetries(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, changes := newTestEngine(t, transport, platform, sched)
	e.cfg.AddrGenMode = AddrGenStablePrivacy
	e.completer.mode = AddrGenStablePrivacy
	e.completer.stableType = "slaac"
	e.completer.networkID = "net"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	e.AddAddress(Address{Addr: netip.MustParseAddr("2001:db8::"), Timestamp: 0, Lifetime: 1000})
	e.RAReceived(0, 0, DHCPLevelNone, 64)
	<-changes

	snap := e.Snapshot()
	require.Len(t, snap.Addresses, 1)
	firstAddr := snap.Addresses[0].Addr

	e.DADFailed(firstAddr)

	mask := <-changes
	assert.True(t, mask.Has(ChangeAddresses))

	snap = e.Snapshot()
	require.Len(t, snap.Addresses, 1, "stable-privacy DAD failure should retry with a new candidate, not remove the address")
	assert.NotEqual(t, firstAddr, snap.Addresses[0].Addr)
}

func TestEngine_RATimeout(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	fired := make(chan struct{}, 1)

	cfg := &Config{
		Logger:                     discardLogger(),
		Platform:                   platform,
		Transport:                  transport,
		Scheduler:                  sched,
		IfName:                     "eth0",
		Ifindex:                    1,
		RouterSolicitations:        3,
		RouterSolicitationInterval: 4 * time.Second,
	}

	e, err := NewEngine(cfg, nil, func() { fired <- struct{}{} })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	require.NotEmpty(t, sched.armed)
	firstRACb := sched.armed[0].cb
	firstRACb()

	select {
	case <-fired:
	default:
		t.Fatal("expected the RA timeout callback to fire")
	}
}

func TestEngine_SetIID_EUI64Regenerates(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, changes := newTestEngine(t, transport, platform, sched)
	e.cfg.AddrGenMode = AddrGenEUI64
	e.completer.mode = AddrGenEUI64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	iid1 := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	regen := e.SetIID(iid1)
	assert.True(t, regen)

	e.AddAddress(Address{Addr: netip.MustParseAddr("2001:db8::"), Timestamp: 0, Lifetime: 1000})
	e.RAReceived(0, 0, DHCPLevelNone, 64)
	<-changes
	require.Len(t, e.Snapshot().Addresses, 1)

	iid2 := [8]byte{0, 0, 0, 0, 0, 0, 0, 2}
	regen = e.SetIID(iid2)
	assert.True(t, regen)

	mask := <-changes
	assert.True(t, mask.Has(ChangeAddresses))
	assert.Empty(t, e.Snapshot().Addresses)

	// Setting the same IID again is a no-op.
	regen = e.SetIID(iid2)
	assert.False(t, regen)
}

func TestEngine_SetIID_StablePrivacyNeverRegenerates(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, _ := newTestEngine(t, transport, platform, sched)
	e.cfg.AddrGenMode = AddrGenStablePrivacy
	e.completer.mode = AddrGenStablePrivacy

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	regen := e.SetIID([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.False(t, regen)
}

func TestEngine_SetIID_BeforeStartDoesNotArmPacer(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, _ := newTestEngine(t, transport, platform, sched)
	e.cfg.AddrGenMode = AddrGenEUI64
	e.completer.mode = AddrGenEUI64

	// Setting the IID before Start must not arm a send timer: the
	// transport's socket isn't open yet, so an immediate solicitation
	// attempt here would be doomed to fail and would make Start's own
	// solicit() call a no-op.
	regen := e.SetIID([8]byte{0, 0, 0, 0, 0, 0, 0, 1})
	assert.True(t, regen)
	assert.Empty(t, sched.armed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	require.NotEmpty(t, sched.armed)
}

func TestEngine_StartTwiceFails(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, _ := newTestEngine(t, transport, platform, sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx))
	assert.ErrorIs(t, e.Start(ctx), errAlreadyStarted)
}

func TestEngine_Dispose(t *testing.T) {
	platform := &fakePlatform{now: 0}
	transport := &fakeTransport{}
	sched := &recordingScheduler{}

	e, _ := newTestEngine(t, transport, platform, sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	e.AddGateway(Gateway{Addr: netip.MustParseAddr("fe80::1"), Timestamp: 0, Lifetime: 1800})
	e.RAReceived(0, 0, DHCPLevelNone, 64)

	e.Dispose()

	snap := e.Snapshot()
	assert.Empty(t, snap.Gateways)
}
