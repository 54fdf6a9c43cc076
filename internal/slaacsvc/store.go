package slaacsvc

import (
	"encoding/binary"
	"net/netip"
)

// store is the C2 Learned-Item Store: five ordered collections with
// merge/replace/remove semantics keyed per item type, per spec.md §4.2.
//
// A store is not safe for concurrent use; callers (the [Engine]) serialize
// access.
type store struct {
	gateways   []Gateway
	addresses  []Address
	routes     []Route
	dnsServers []DNSServer
	dnsDomains []DNSDomain

	maxAddresses int
	completer    *completer
}

// addGateway implements the Add-Gateway merge procedure.
func (s *store) addGateway(newItem Gateway) (changed bool) {
	insertAt := -1

	for i := range s.gateways {
		existing := &s.gateways[i]
		if existing.Addr != newItem.Addr {
			if insertAt < 0 && existing.Preference < newItem.Preference {
				insertAt = i
			}

			continue
		}

		if newItem.Lifetime == 0 {
			s.gateways = removeAt(s.gateways, i)

			return true
		}

		if existing.Preference != newItem.Preference {
			s.gateways = removeAt(s.gateways, i)
			changed = true

			break
		}

		*existing = newItem

		return false
	}

	if newItem.Lifetime == 0 {
		return changed
	}

	if insertAt < 0 {
		// Re-scan for the insertion point after a preference-triggered
		// removal, or compute it fresh when there was no match at all.
		insertAt = len(s.gateways)
		for i := range s.gateways {
			if s.gateways[i].Preference < newItem.Preference {
				insertAt = i
				break
			}
		}
	}

	s.gateways = insertGatewayAt(s.gateways, insertAt, newItem)

	return true
}

// addRoute implements the Add-Route merge procedure.  It panics on an
// out-of-range plen, which spec.md classifies as a programmer error.
func (s *store) addRoute(newItem Route) (changed bool) {
	if newItem.Plen == 0 || newItem.Plen > 128 {
		panic("slaacsvc: route plen out of range")
	}

	ident := func(r Route) (yes bool) {
		return r.Network == newItem.Network && r.Plen == newItem.Plen
	}

	insertAt := -1

	for i := range s.routes {
		existing := &s.routes[i]
		if !ident(*existing) {
			if insertAt < 0 && existing.Preference < newItem.Preference {
				insertAt = i
			}

			continue
		}

		if newItem.Lifetime == 0 {
			s.routes = append(s.routes[:i], s.routes[i+1:]...)

			return true
		}

		if existing.Preference != newItem.Preference {
			s.routes = append(s.routes[:i], s.routes[i+1:]...)
			changed = true

			break
		}

		*existing = newItem

		return false
	}

	if newItem.Lifetime == 0 {
		return changed
	}

	if insertAt < 0 {
		insertAt = len(s.routes)
		for i := range s.routes {
			if s.routes[i].Preference < newItem.Preference {
				insertAt = i
				break
			}
		}
	}

	s.routes = insertRouteAt(s.routes, insertAt, newItem)

	return true
}

// addAddress implements the Add-Address merge procedure.  It runs the
// address completer on newItem before matching identity, since identity is
// defined on the completed address — unless a stored entry already shares
// newItem's prefix, in which case its completed address is reused outright.
//
// The transport has no memory of a prefix's prior completion, so every
// refresh of the same prefix arrives as a bare prefix with DADCounter at 0.
// Running the completer on that fresh value would re-derive the counter-0
// candidate and advance straight past it, producing a different address
// from the one actually stored every time — orphaning a prefix that has
// ever survived a DAD failure instead of refreshing it. Reusing the stored
// completed address for a prefix match sidesteps re-derivation entirely.
func (s *store) addAddress(newItem Address) (changed bool) {
	reused := false
	if prefix, ok := addrPrefix(newItem.Addr); ok {
		for i := range s.addresses {
			if p, pok := addrPrefix(s.addresses[i].Addr); pok && p == prefix {
				newItem.Addr = s.addresses[i].Addr
				newItem.DADCounter = s.addresses[i].DADCounter
				reused = true

				break
			}
		}
	}

	if !reused && !s.completer.complete(&newItem) {
		return false
	}

	for i := range s.addresses {
		existing := &s.addresses[i]
		if existing.Addr != newItem.Addr {
			continue
		}

		if newItem.Lifetime == 0 {
			s.addresses = append(s.addresses[:i], s.addresses[i+1:]...)

			return true
		}

		oldExpiry, oldInf := expiry(existing.Timestamp, existing.Lifetime)
		oldPreferredExpiry, oldPreferredInf := expiry(existing.Timestamp, existing.Preferred)
		*existing = newItem
		newExpiry, newInf := expiry(newItem.Timestamp, newItem.Lifetime)
		newPreferredExpiry, newPreferredInf := expiry(newItem.Timestamp, newItem.Preferred)

		return oldExpiry != newExpiry || oldInf != newInf ||
			oldPreferredExpiry != newPreferredExpiry || oldPreferredInf != newPreferredInf
	}

	if newItem.Lifetime == 0 {
		return false
	}

	if s.maxAddresses > 0 && len(s.addresses) >= s.maxAddresses {
		return false
	}

	s.addresses = append(s.addresses, newItem)

	return true
}

// addrPrefix returns the high 64 bits of an IPv6 address, i.e. its /64
// network prefix. ok is false for anything that isn't a 16-byte address.
func addrPrefix(a netip.Addr) (prefix uint64, ok bool) {
	if !a.Is6() {
		return 0, false
	}

	b := a.As16()

	return binary.BigEndian.Uint64(b[:8]), true
}

// addDNSServer implements the Add-DNSServer merge procedure.
func (s *store) addDNSServer(newItem DNSServer) (changed bool) {
	for i := range s.dnsServers {
		existing := &s.dnsServers[i]
		if existing.Addr != newItem.Addr {
			continue
		}

		if newItem.Lifetime == 0 {
			s.dnsServers = append(s.dnsServers[:i], s.dnsServers[i+1:]...)

			return true
		}

		changed = existing.Timestamp != newItem.Timestamp || existing.Lifetime != newItem.Lifetime
		*existing = newItem

		return changed
	}

	if newItem.Lifetime == 0 {
		return false
	}

	s.dnsServers = append(s.dnsServers, newItem)

	return true
}

// addDNSDomain implements the Add-DNSDomain merge procedure.
func (s *store) addDNSDomain(newItem DNSDomain) (changed bool) {
	for i := range s.dnsDomains {
		existing := &s.dnsDomains[i]
		if existing.Name != newItem.Name {
			continue
		}

		if newItem.Lifetime == 0 {
			s.dnsDomains = append(s.dnsDomains[:i], s.dnsDomains[i+1:]...)

			return true
		}

		changed = existing.Timestamp != newItem.Timestamp || existing.Lifetime != newItem.Lifetime
		existing.Timestamp = newItem.Timestamp
		existing.Lifetime = newItem.Lifetime

		return changed
	}

	if newItem.Lifetime == 0 {
		return false
	}

	s.dnsDomains = append(s.dnsDomains, newItem)

	return true
}

// flushAddresses removes every autoconfigured address, per the set_iid
// EUI-64 regeneration path.  It reports whether any address was removed.
func (s *store) flushAddresses() (changed bool) {
	if len(s.addresses) == 0 {
		return false
	}

	s.addresses = s.addresses[:0]

	return true
}

// removeAt removes the gateway at index i, preserving order.
func removeAt(items []Gateway, i int) (result []Gateway) {
	return append(items[:i], items[i+1:]...)
}

// insertGatewayAt inserts newItem into items at index i, preserving order.
func insertGatewayAt(items []Gateway, i int, newItem Gateway) (result []Gateway) {
	items = append(items, Gateway{})
	copy(items[i+1:], items[i:])
	items[i] = newItem

	return items
}

// insertRouteAt inserts newItem into items at index i, preserving order.
func insertRouteAt(items []Route, i int, newItem Route) (result []Route) {
	items = append(items, Route{})
	copy(items[i+1:], items[i:])
	items[i] = newItem

	return items
}
