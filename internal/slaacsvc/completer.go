package slaacsvc

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"net/netip"
)

// completer is the C1 Address Completer.  It fills the host bits of an
// autoconfigured address's prefix with either an EUI-64 or an RFC 7217
// stable-privacy identifier, and advances the per-address DAD counter.
//
// There is no suitable third-party implementation of RFC 7217's F() function
// in the retrieval pack, so the derivation below is hand-rolled on top of
// crypto/sha256 — see DESIGN.md.
type completer struct {
	mode       AddrGenMode
	stableType string
	networkID  string
	ifname     string

	// iid is the engine's current interface identifier, used in EUI-64
	// mode.  Nil means unset.
	iid *[8]byte
}

// complete fills the host bits of a.Addr in place, per spec.md §4.1.  On
// success, the prefix (high 64 bits) is unchanged and ok is true.  On
// failure, a is left entirely unchanged and ok is false.
func (c *completer) complete(a *Address) (ok bool) {
	switch c.mode {
	case AddrGenStablePrivacy:
		return c.completeStablePrivacy(a)
	default:
		return c.completeEUI64(a)
	}
}

// completeEUI64 implements the EUI-64 branch of [completer.complete].  There
// is no second EUI-64 candidate, so a non-zero host part is a terminal
// failure rather than something to regenerate.
func (c *completer) completeEUI64(a *Address) (ok bool) {
	b := a.Addr.As16()
	if hasNonZeroHost(b) {
		return false
	}

	if c.iid == nil {
		return false
	}

	copy(b[8:], c.iid[:])
	a.Addr = netip.AddrFrom16(b)

	return true
}

// completeStablePrivacy implements the stable-privacy branch of
// [completer.complete].  It always produces a candidate (barring counter
// exhaustion) and always advances a.DADCounter, which is how repeated DAD
// failures eventually converge on a free address.
func (c *completer) completeStablePrivacy(a *Address) (ok bool) {
	if a.DADCounter == math.MaxUint32 {
		return false
	}

	b := a.Addr.As16()
	host := c.deriveStablePrivacy(a.DADCounter)
	copy(b[8:], host[:])
	a.Addr = netip.AddrFrom16(b)
	a.DADCounter++

	return true
}

// deriveStablePrivacy computes the 64 low bits of a stable-privacy address
// from the engine's stable inputs and the given DAD counter, per RFC 7217's
// general shape (F(prefix, net_iface, network_id, dad_counter, secret_key)).
func (c *completer) deriveStablePrivacy(counter uint32) (host [8]byte) {
	h := sha256.New()
	_, _ = h.Write([]byte(c.stableType))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(c.networkID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(c.ifname))

	var ctrBuf [4]byte
	binary.BigEndian.PutUint32(ctrBuf[:], counter)
	_, _ = h.Write(ctrBuf[:])

	sum := h.Sum(nil)
	copy(host[:], sum[:8])

	// RFC 4291 requires the universal/local bit be cleared for
	// non-EUI-64-derived interface identifiers.
	host[0] &^= 0x02

	return host
}

// hasNonZeroHost reports whether the low 64 bits of b are non-zero.
func hasNonZeroHost(b [16]byte) (yes bool) {
	for _, x := range b[8:] {
		if x != 0 {
			return true
		}
	}

	return false
}
