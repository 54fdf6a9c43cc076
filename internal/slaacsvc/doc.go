// Package slaacsvc implements the IPv6 Neighbor Discovery / SLAAC state
// engine of a host network manager.
//
// The engine drives Router Solicitation emission on a single network
// interface, consumes already-parsed Router Advertisement data handed to it
// by a transport collaborator, maintains the time-bounded set of learned
// gateways, autoconfigured addresses, routes, DNS servers and DNS search
// domains, and publishes change notifications when that set evolves. It does
// not parse ICMPv6 packets, does not enter network namespaces itself, and
// does not install anything into the kernel; those are the jobs of the
// [Transport] and [Platform] collaborators it is constructed with.
package slaacsvc
