package slaacsvc

// sweep implements the C3 Expiry Sweeper: it evaluates every item's
// `timestamp + lifetime` against now, drops expired items, and folds every
// remaining deadline (including the RFC 8106 DNS midpoint) into the next
// wake-up time.  It reports the resulting change mask, the next wake-up
// (noNextEvent if nothing remains to wait for), and whether a refresh
// solicitation is due.
func (s *store) sweep(now Seconds, mask ChangeMask) (result ChangeMask, next int64, solicit bool) {
	result = mask
	next = noNextEvent

	s.gateways, result, next = sweepPreferred(s.gateways, now, result, ChangeGateways, next,
		func(g Gateway) (ts Seconds, lt Lifetime) { return g.Timestamp, g.Lifetime })

	s.routes, result, next = sweepPreferred(s.routes, now, result, ChangeRoutes, next,
		func(r Route) (ts Seconds, lt Lifetime) { return r.Timestamp, r.Lifetime })

	s.addresses, result, next = sweepAddresses(s.addresses, now, result, next)

	s.dnsServers, result, next, solicit = sweepRefreshable(s.dnsServers, now, result, ChangeDNSServers, next,
		func(d DNSServer) (ts Seconds, lt Lifetime) { return d.Timestamp, d.Lifetime })

	var solicitDomains bool
	s.dnsDomains, result, next, solicitDomains = sweepRefreshable(s.dnsDomains, now, result, ChangeDNSDomains, next,
		func(d DNSDomain) (ts Seconds, lt Lifetime) { return d.Timestamp, d.Lifetime })
	solicit = solicit || solicitDomains

	return result, next, solicit
}

// sweepPreferred drops expired gateways or routes and folds remaining
// expiries into next.
func sweepPreferred[T any](
	items []T,
	now Seconds,
	mask ChangeMask,
	bit ChangeMask,
	next int64,
	fields func(T) (ts Seconds, lt Lifetime),
) (result []T, outMask ChangeMask, outNext int64) {
	kept := items[:0]

	for _, item := range items {
		ts, lt := fields(item)
		if expired(now, ts, lt) {
			mask |= bit

			continue
		}

		exp, inf := expiry(ts, lt)
		next = foldDeadline(next, exp, inf)
		kept = append(kept, item)
	}

	return kept, mask, next
}

// sweepAddresses drops expired addresses and folds the valid-lifetime
// deadline, and the preferred-lifetime deadline while it is still ahead, into
// next.  Preferred-lifetime expiry alone does not remove an address.
func sweepAddresses(items []Address, now Seconds, mask ChangeMask, next int64) (result []Address, outMask ChangeMask, outNext int64) {
	kept := items[:0]

	for _, a := range items {
		if expired(now, a.Timestamp, a.Lifetime) {
			mask |= ChangeAddresses

			continue
		}

		exp, inf := expiry(a.Timestamp, a.Lifetime)
		next = foldDeadline(next, exp, inf)

		if !expired(now, a.Timestamp, a.Preferred) {
			pexp, pinf := expiry(a.Timestamp, a.Preferred)
			next = foldDeadline(next, pexp, pinf)
		}

		kept = append(kept, a)
	}

	return kept, mask, next
}

// sweepRefreshable drops expired DNS servers or domains, folds the RFC 8106
// midpoint deadline into next, and reports whether a refresh solicitation is
// due for any surviving item.
func sweepRefreshable[T any](
	items []T,
	now Seconds,
	mask ChangeMask,
	bit ChangeMask,
	next int64,
	fields func(T) (ts Seconds, lt Lifetime),
) (result []T, outMask ChangeMask, outNext int64, solicit bool) {
	kept := items[:0]

	for _, item := range items {
		ts, lt := fields(item)
		if expired(now, ts, lt) {
			mask |= bit

			continue
		}

		if lt != InfiniteLifetime {
			// Computed in 64-bit, like expiry() itself: ts+lifetime/2 can
			// exceed the range of a uint32 Seconds value well before the
			// item's own expiry does, which would otherwise wrap the
			// midpoint back into the past and spuriously trigger a refresh.
			midpoint := int64(ts) + int64(lt)/2
			if int64(now) >= midpoint {
				solicit = true
			} else {
				next = foldDeadline(next, midpoint, false)
			}
		}

		exp, inf := expiry(ts, lt)
		next = foldDeadline(next, exp, inf)

		kept = append(kept, item)
	}

	return kept, mask, next, solicit
}
