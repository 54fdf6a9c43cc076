package slaacsvc

import "context"

// Transport sends Router Solicitations on behalf of an [Engine] and is the
// source of Router Advertisement data.  A Transport implementation owns the
// ICMPv6 socket; it is expected to parse incoming Router Advertisements and
// feed them back into the engine through its Add* methods followed by
// [Engine.RAReceived], rather than have the engine parse wire data itself.
//
// Transport implementations must be safe for concurrent use: Start runs for
// the engine's lifetime while SendRS is called from the pacer's timer
// goroutine.
type Transport interface {
	// Start begins listening for Router Advertisements on the engine's
	// interface.  It blocks until ctx is done or an unrecoverable error
	// occurs.
	Start(ctx context.Context) (err error)

	// SendRS sends a single Router Solicitation.  A transient send failure
	// is reported but does not stop the solicitation burst.
	SendRS(ctx context.Context) (err error)
}

// Platform supplies the collaborators an [Engine] needs that are specific to
// the host operating system: the monotonic clock driving expiry arithmetic,
// and network-namespace scoping around socket operations performed by a
// [Transport].  No NDP or ICMPv6 parsing happens through Platform; that is
// the Transport's responsibility.
type Platform interface {
	Clock

	// EnterNamespace scopes the calling goroutine to the network namespace
	// the engine's interface lives in, if the host supports or requires
	// that, and returns a function that restores the prior namespace.
	// Implementations that have no namespace concept return a no-op
	// release and a nil error.
	EnterNamespace() (release func(), err error)
}
