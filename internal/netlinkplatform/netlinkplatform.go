//go:build linux

// Package netlinkplatform is a concrete implementation of
// slaacsvc.Platform for Linux: it supplies the monotonic-seconds clock from
// CLOCK_BOOTTIME, scopes network-namespace entry around socket operations
// via unix.Setns, and reads link MTU and hardware address for
// internal/icmp6's Source Link-Layer Address option.
package netlinkplatform

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/slaacd/internal/slaacsvc"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// Platform is a slaacsvc.Platform backed by CLOCK_BOOTTIME and, optionally,
// a named network namespace.
type Platform struct {
	// NamespacePath is the bind-mounted path of the network namespace to
	// enter before socket operations, e.g. "/var/run/netns/uplink". Empty
	// means the current namespace is used and EnterNamespace is a no-op.
	NamespacePath string
}

// type check
var _ slaacsvc.Platform = (*Platform)(nil)

// Now implements the slaacsvc.Clock interface (embedded in
// slaacsvc.Platform) for *Platform.
func (p *Platform) Now() (now slaacsvc.Seconds) {
	var ts unix.Timespec

	clockID := unix.CLOCK_BOOTTIME
	if err := unix.ClockGettime(clockID, &ts); err != nil {
		clockID = unix.CLOCK_MONOTONIC
		_ = unix.ClockGettime(clockID, &ts)
	}

	return slaacsvc.Seconds(ts.Sec)
}

// EnterNamespace implements the slaacsvc.Platform interface for *Platform.
// When NamespacePath is empty this is a no-op. Otherwise it locks the
// calling goroutine to its OS thread, switches into the named namespace, and
// returns a release function that restores the original namespace and
// unlocks the thread.
func (p *Platform) EnterNamespace() (release func(), err error) {
	if p.NamespacePath == "" {
		return func() {}, nil
	}

	runtime.LockOSThread()

	orig, err := os.Open("/proc/self/ns/net")
	if err != nil {
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("opening current namespace: %w", err)
	}

	target, err := os.Open(p.NamespacePath)
	if err != nil {
		_ = orig.Close()
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("opening target namespace: %w", err)
	}
	defer func() { _ = target.Close() }()

	if err = unix.Setns(int(target.Fd()), unix.CLONE_NEWNET); err != nil {
		_ = orig.Close()
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("entering namespace: %w", err)
	}

	return func() {
		defer func() { _ = orig.Close() }()

		if setErr := unix.Setns(int(orig.Fd()), unix.CLONE_NEWNET); setErr != nil {
			// The original namespace descriptor is still open; there is
			// nothing more we can do than leave the thread pinned to a
			// namespace that outlives it, which LockOSThread ensures does
			// not leak onto another goroutine.
			return
		}

		runtime.UnlockOSThread()
	}, nil
}

// rtmGetlink is the RTM_GETLINK netlink message type.
const rtmGetlink = 18

// ifinfomsgLen is the size of the rtnetlink ifinfomsg header.
const ifinfomsgLen = 16

// Netlink attribute types used from linux/if_link.h.
const (
	iflaAddress = 1
	iflaMTU     = 4
)

// LinkInfo returns the MTU and hardware address of the interface identified
// by ifindex, read via a single RTM_GETLINK request.
func LinkInfo(ifindex int) (mtu uint32, hwAddr net.HardwareAddr, err error) {
	conn, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("dialing netlink: %w", err)
	}
	defer func() { _ = conn.Close() }()

	req := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(rtmGetlink),
			Flags: netlink.Request | netlink.Acknowledge,
		},
		Data: marshalIfinfomsg(ifindex),
	}

	resp, err := conn.Execute(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing RTM_GETLINK: %w", err)
	}

	for _, m := range resp {
		if len(m.Data) < ifinfomsgLen {
			continue
		}

		ad, adErr := netlink.NewAttributeDecoder(m.Data[ifinfomsgLen:])
		if adErr != nil {
			continue
		}

		for ad.Next() {
			switch ad.Type() {
			case iflaMTU:
				mtu = ad.Uint32()
			case iflaAddress:
				hwAddr = append(net.HardwareAddr(nil), ad.Bytes()...)
			}
		}
	}

	if hwAddr == nil {
		return 0, nil, errors.Error("netlinkplatform: no link-layer address in response")
	}

	return mtu, hwAddr, nil
}

// marshalIfinfomsg builds the rtnetlink ifinfomsg header requesting
// information about ifindex.
func marshalIfinfomsg(ifindex int) (b []byte) {
	b = make([]byte, ifinfomsgLen)
	b[0] = unix.AF_UNSPEC
	binary.NativeEndian.PutUint32(b[4:8], uint32(ifindex))

	return b
}
