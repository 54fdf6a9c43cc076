package slaacsvc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// AddrGenMode selects the strategy the [completer] uses to fill the host
// bits of an autoconfigured address.
type AddrGenMode uint8

// AddrGenMode values.
const (
	// AddrGenEUI64 derives host bits from the interface's hardware address,
	// overlaid through the engine's configured interface identifier.  It has
	// no second candidate: DAD failure removes the address.
	AddrGenEUI64 AddrGenMode = iota

	// AddrGenStablePrivacy derives host bits per RFC 7217, advancing a
	// per-address counter on every completion attempt, including DAD
	// failures.
	AddrGenStablePrivacy
)

// Config is the immutable, per-interface configuration of an [Engine].  It
// must be valid, see [Config.Validate].
type Config struct {
	// Logger is used for logging the engine's operation.  It must not be
	// nil.
	Logger *slog.Logger

	// Platform supplies the monotonic clock and scopes namespace entry
	// around transport operations.  It must not be nil.
	Platform Platform

	// Transport sends Router Solicitations and is expected to feed parsed
	// Router Advertisement data back through the Add* methods before
	// calling [Engine.RAReceived].  It must not be nil.
	Transport Transport

	// Scheduler arms and cancels the engine's timers.  If nil, a real
	// wall-clock scheduler is used.
	Scheduler Scheduler

	// IfName is the name of the interface this engine serves.  It is used as
	// an input to stable-privacy derivation and in logs.  It must not be
	// empty.
	IfName string

	// NetworkID is the stable-privacy salt distinguishing this network from
	// others the host may join over time.  Unused in EUI-64 mode.
	NetworkID string

	// StableType is the stable-privacy domain separation tag.  Unused in
	// EUI-64 mode.
	StableType string

	// AddrGenMode selects the [completer] strategy.
	AddrGenMode AddrGenMode

	// Ifindex identifies the interface for logging and transport use.  It
	// must be positive.
	Ifindex int

	// MaxAddresses caps the number of autoconfigured addresses this engine
	// will hold at once.  Zero means unbounded.
	MaxAddresses int

	// RouterSolicitations is the number of Router Solicitations sent in a
	// single burst.  It must be at least 1.
	RouterSolicitations int32

	// RouterSolicitationInterval is the spacing between Router
	// Solicitations within a burst.  It must be at least one second.
	RouterSolicitationInterval time.Duration
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotNilInterface("Platform", c.Platform),
		validate.NotNilInterface("Transport", c.Transport),
		validate.NotNil("Logger", c.Logger),
		validate.NotEmpty("IfName", c.IfName),
		validate.Positive("Ifindex", c.Ifindex),
		validate.NotNegative("MaxAddresses", c.MaxAddresses),
		validate.Positive("RouterSolicitations", c.RouterSolicitations),
		validate.Positive("RouterSolicitationInterval", c.RouterSolicitationInterval),
	}

	// validate.Positive only rejects zero and below; spec.md §6 requires at
	// least a full second, and the pacer truncates to whole seconds
	// (int32(d/time.Second)), so a sub-second value would silently become 0.
	if c.RouterSolicitationInterval > 0 && c.RouterSolicitationInterval < time.Second {
		errs = append(errs, fmt.Errorf(
			"RouterSolicitationInterval: %w: must be at least one second, got %s",
			errors.ErrOutOfRange, c.RouterSolicitationInterval,
		))
	}

	if c.AddrGenMode == AddrGenStablePrivacy {
		errs = append(errs, validate.NotEmpty("NetworkID", c.NetworkID))
	}

	return errors.Join(errs...)
}

// clampI32 clamps v into [lo, hi].
func clampI32(v, lo, hi int32) (res int32) {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// firstRATimeout computes the first-RA timeout per spec.md §4.5: one
// solicitation interval for each of the N solicitations in a burst, plus one
// second of grace, clamped to [30, 120] seconds.
func (c *Config) firstRATimeout() (d time.Duration) {
	total := c.RouterSolicitations*int32(c.RouterSolicitationInterval/time.Second) + 1
	total = clampI32(total, 30, 120)

	return time.Duration(total) * time.Second
}
