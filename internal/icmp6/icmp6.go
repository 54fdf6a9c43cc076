// Package icmp6 is a concrete implementation of slaacsvc.Transport. It owns
// the ICMPv6 raw socket, sends Router Solicitations, and decodes inbound
// Router Advertisements into the engine's learned-item collections.
//
// This package is deliberately thin, per spec.md §1: it performs no retry
// logic and no protocol validation beyond what github.com/mdlayher/ndp
// already does. All soft-state handling (pacing, expiry, merge semantics)
// lives in slaacsvc.
package icmp6

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/slaacd/internal/aghslog"
	"github.com/AdguardTeam/slaacd/internal/slaacsvc"
	"github.com/mdlayher/ndp"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

// allRoutersAddr is the link-local all-routers multicast address Router
// Solicitations are sent to, per RFC 4861 section 4.1.
var allRoutersAddr = netip.MustParseAddr("ff02::2")

// allNodesAddr is the link-local all-nodes multicast group Router
// Advertisements arrive on.
var allNodesAddr = netip.MustParseAddr("ff02::1")

// defaultReadBufSize is the receive buffer size used when the MTU passed to
// New is zero (e.g. LinkInfo found no MTU attribute for the link).
const defaultReadBufSize = 1500

// Transport is a slaacsvc.Transport backed by a raw ICMPv6 socket scoped to
// one network interface.
type Transport struct {
	logger   *slog.Logger
	iface    *net.Interface
	srcIP    netip.Addr
	hwAddr   net.HardwareAddr
	mtu      uint32
	platform slaacsvc.Platform
	engine   *slaacsvc.Engine

	conn *icmp.PacketConn
}

// type check
var _ slaacsvc.Transport = (*Transport)(nil)

// New returns a Transport for iface. srcIP is the link-local address used as
// the ICMPv6 socket's source. hwAddr and mtu are the interface's link-layer
// address and MTU, as read by netlinkplatform.LinkInfo; hwAddr is used as
// the source of the Source Link-Layer Address option, and mtu sizes the
// receive buffer (0 falls back to defaultReadBufSize). platform supplies
// the monotonic clock used to stamp learned items. The engine must be
// attached with SetEngine before Start is called, since constructing an
// Engine requires this Transport first.
func New(
	logger *slog.Logger,
	iface *net.Interface,
	srcIP netip.Addr,
	hwAddr net.HardwareAddr,
	mtu uint32,
	platform slaacsvc.Platform,
) (t *Transport) {
	return &Transport{
		logger:   aghslog.NewForInterface(logger, iface.Name).With(aghslog.KeyIfIndex, iface.Index),
		iface:    iface,
		srcIP:    srcIP,
		hwAddr:   hwAddr,
		mtu:      mtu,
		platform: platform,
	}
}

// SetEngine attaches the engine this transport feeds. It must be called
// exactly once, before Start.
func (t *Transport) SetEngine(engine *slaacsvc.Engine) { t.engine = engine }

// Start implements the slaacsvc.Transport interface for *Transport. It opens
// the ICMPv6 socket, joins the all-nodes multicast group, and runs the
// receive loop until ctx is done.
func (t *Transport) Start(ctx context.Context) (err error) {
	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", t.srcIP.String()+"%"+t.iface.Name)
	if err != nil {
		return fmt.Errorf("listening icmpv6: %w", err)
	}
	t.conn = conn

	defer func() { err = errors.WithDeferred(err, conn.Close()) }()

	pc := conn.IPv6PacketConn()
	if err = pc.JoinGroup(t.iface, &net.IPAddr{IP: net.ParseIP(allNodesAddr.String())}); err != nil {
		return fmt.Errorf("joining all-nodes group: %w", err)
	}

	if err = pc.SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagSrc, true); err != nil {
		return fmt.Errorf("setting control message flags: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	return t.receiveLoop(ctx)
}

// receiveLoop reads and decodes inbound packets until the connection is
// closed.
func (t *Transport) receiveLoop(ctx context.Context) (err error) {
	bufSize := t.mtu
	if bufSize == 0 {
		bufSize = defaultReadBufSize
	}
	buf := make([]byte, bufSize)
	for {
		n, _, src, err := t.conn.IPv6PacketConn().ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("reading icmpv6 packet: %w", err)
		}

		srcIP, ok := srcAddr(src)
		if !ok {
			continue
		}

		t.handlePacket(buf[:n], srcIP)
	}
}

// srcAddr extracts a netip.Addr from the net.Addr a PacketConn hands back.
func srcAddr(a net.Addr) (addr netip.Addr, ok bool) {
	ipAddr, is := a.(*net.IPAddr)
	if !is {
		return netip.Addr{}, false
	}

	addr, ok = netip.AddrFromSlice(ipAddr.IP)

	return addr.Unmap(), ok
}

// handlePacket parses one ICMPv6 packet, ignoring anything that is not a
// Router Advertisement, and feeds its options to the engine.
func (t *Transport) handlePacket(b []byte, srcIP netip.Addr) {
	msg, err := ndp.ParseMessage(b)
	if err != nil {
		t.logger.Debug("parsing icmpv6 message", slogutil.KeyError, err)

		return
	}

	ra, ok := msg.(*ndp.RouterAdvertisement)
	if !ok {
		return
	}

	t.applyRA(ra, srcIP)
}

// applyRA feeds every option in ra, plus the gateway itself, to the engine
// and finalizes the RA with RAReceived.
func (t *Transport) applyRA(ra *ndp.RouterAdvertisement, srcIP netip.Addr) {
	now := t.platform.Now()

	dhcpLevel := slaacsvc.DHCPLevelNone
	switch {
	case ra.ManagedConfiguration:
		dhcpLevel = slaacsvc.DHCPLevelManaged
	case ra.OtherConfiguration:
		dhcpLevel = slaacsvc.DHCPLevelOtherConf
	}

	t.engine.AddGateway(slaacsvc.Gateway{
		Addr:       srcIP,
		Timestamp:  now,
		Lifetime:   slaacsvc.Lifetime(ra.RouterLifetime.Seconds()),
		Preference: preferenceFromNDP(ra.RouterSelectionPreference),
	})

	for _, opt := range ra.Options {
		switch o := opt.(type) {
		case *ndp.PrefixInformation:
			t.engine.AddAddress(slaacsvc.Address{
				Addr:      prefixToAddr(o.Prefix, o.PrefixLength),
				Timestamp: now,
				Lifetime:  slaacsvc.Lifetime(o.ValidLifetime.Seconds()),
				Preferred: slaacsvc.Lifetime(o.PreferredLifetime.Seconds()),
			})
		case *ndp.RouteInformation:
			t.engine.AddRoute(slaacsvc.Route{
				Network:    o.Prefix,
				Gateway:    srcIP,
				Plen:       o.PrefixLength,
				Timestamp:  now,
				Lifetime:   slaacsvc.Lifetime(o.RouteLifetime.Seconds()),
				Preference: preferenceFromNDP(o.Preference),
			})
		case *ndp.RecursiveDNSServer:
			for _, addr := range o.Servers {
				t.engine.AddDNSServer(slaacsvc.DNSServer{
					Addr:      addr,
					Timestamp: now,
					Lifetime:  slaacsvc.Lifetime(o.Lifetime.Seconds()),
				})
			}
		case *ndp.DNSSearchList:
			for _, name := range o.DomainNames {
				t.engine.AddDNSDomain(slaacsvc.DNSDomain{
					Name:      name,
					Timestamp: now,
					Lifetime:  slaacsvc.Lifetime(o.Lifetime.Seconds()),
				})
			}
		}
	}

	t.engine.RAReceived(now, 0, dhcpLevel, ra.CurrentHopLimit)
}

// SendRS implements the slaacsvc.Transport interface for *Transport. It
// builds and sends a single Router Solicitation with a Source Link-Layer
// Address option.
func (t *Transport) SendRS(ctx context.Context) (err error) {
	if t.conn == nil {
		return errors.Error("icmp6: transport not started")
	}

	rs := &ndp.RouterSolicitation{
		Options: []ndp.Option{
			&ndp.LinkLayerAddress{
				Direction: ndp.Source,
				Addr:      t.hwAddr,
			},
		},
	}

	b, err := ndp.MarshalMessage(rs)
	if err != nil {
		return fmt.Errorf("marshaling router solicitation: %w", err)
	}

	dst := &net.IPAddr{IP: net.ParseIP(allRoutersAddr.String()), Zone: t.iface.Name}
	if _, err = t.conn.WriteTo(b, dst); err != nil {
		return fmt.Errorf("writing router solicitation: %w", err)
	}

	return nil
}

// preferenceFromNDP maps the ndp package's router/route preference
// encoding onto slaacsvc.Preference.
func preferenceFromNDP(p ndp.Preference) (pref slaacsvc.Preference) {
	switch p {
	case ndp.Low:
		return slaacsvc.PreferenceLow
	case ndp.High:
		return slaacsvc.PreferenceHigh
	default:
		return slaacsvc.PreferenceMedium
	}
}

// prefixToAddr overlays a prefix's network bits into a full 128-bit address
// with a zero host part, ready for the address completer.
func prefixToAddr(prefix netip.Addr, prefixLength uint8) (addr netip.Addr) {
	b := prefix.As16()
	for i := int(prefixLength); i < 128; i++ {
		b[i/8] &^= 1 << (7 - uint(i%8))
	}

	return netip.AddrFrom16(b)
}
