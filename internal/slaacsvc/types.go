package slaacsvc

import "net/netip"

// Preference is the route/gateway preference as advertised in a Router
// Advertisement or Route Information option.  The values are chosen to match
// RFC 4191's signed two-bit encoding, so that reserved wire values keep a
// sensible relative order instead of requiring special-casing.
type Preference int8

// Preference values.  PreferenceLow, PreferenceMedium and PreferenceHigh are
// totally ordered; any other value sorts by its raw integer encoding, per
// spec.md's "Open questions" resolution.
const (
	PreferenceLow    Preference = -1
	PreferenceMedium Preference = 0
	PreferenceHigh   Preference = 1
)

// DHCPLevel reports whether and how a DHCPv6 client should run alongside
// SLAAC, as derived from a Router Advertisement's M/O flags.
type DHCPLevel uint8

// DHCPLevel values.
const (
	DHCPLevelNone DHCPLevel = iota
	DHCPLevelOtherConf
	DHCPLevelManaged
)

// ChangeMask is a bit set over the collections (and DHCP level) that changed
// during one engine operation.
type ChangeMask uint8

// ChangeMask bits.
const (
	ChangeDHCPLevel ChangeMask = 1 << iota
	ChangeGateways
	ChangeAddresses
	ChangeRoutes
	ChangeDNSServers
	ChangeDNSDomains
)

// Has reports whether m has every bit of other set.
func (m ChangeMask) Has(other ChangeMask) (yes bool) { return m&other == other }

// String renders m as the compact "d G A R S D" letter form used in
// human-readable logs, one letter per set bit (lowercase "d" for the DHCP
// level, uppercase for the collections), in collection order, or "-" if m is
// empty.
func (m ChangeMask) String() (s string) {
	if m == 0 {
		return "-"
	}

	letters := []struct {
		bit ChangeMask
		ch  byte
	}{
		{ChangeDHCPLevel, 'd'},
		{ChangeGateways, 'G'},
		{ChangeAddresses, 'A'},
		{ChangeRoutes, 'R'},
		{ChangeDNSServers, 'S'},
		{ChangeDNSDomains, 'D'},
	}

	buf := make([]byte, 0, len(letters))
	for _, l := range letters {
		if m.Has(l.bit) {
			buf = append(buf, l.ch)
		}
	}

	return string(buf)
}

// Gateway is a default router learned from a Router Advertisement's source
// address and router lifetime.  Identity is Addr.
type Gateway struct {
	Addr       netip.Addr
	Timestamp  Seconds
	Lifetime   Lifetime
	Preference Preference
}

// Address is an autoconfigured IPv6 address: a prefix with host bits filled
// in by the [completer].  Identity is Addr, evaluated after completion.
type Address struct {
	Addr       netip.Addr
	Timestamp  Seconds
	Lifetime   Lifetime
	Preferred  Lifetime
	DADCounter uint32
}

// Route is a more-specific route learned from a Route Information option.
// Identity is (Network, Plen).
type Route struct {
	Network    netip.Addr
	Gateway    netip.Addr
	Timestamp  Seconds
	Lifetime   Lifetime
	Preference Preference
	Plen       uint8
}

// DNSServer is a recursive DNS server learned from an RDNSS option.
// Identity is Addr.
type DNSServer struct {
	Addr      netip.Addr
	Timestamp Seconds
	Lifetime  Lifetime
}

// DNSDomain is a DNS search domain learned from a DNSSL option.  Identity is
// Name, compared byte-for-byte.
type DNSDomain struct {
	Name      string
	Timestamp Seconds
	Lifetime  Lifetime
}
