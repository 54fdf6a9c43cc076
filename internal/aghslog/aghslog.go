// Package aghslog contains the logging attribute-key constants shared by
// slaacsvc and icmp6, so that log lines from every layer of one interface's
// engine use the same keys.
package aghslog

import (
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// PrefixEngine is the logging prefix for slaacsvc engine logs.
const PrefixEngine = "slaacsvc"

const (
	// KeyInterface is the log attribute for the interface name an engine,
	// transport, or platform call is scoped to.
	KeyInterface = "iface"

	// KeyIfIndex is the log attribute for the interface index.
	KeyIfIndex = "ifindex"

	// KeyChangeMask is the log attribute for a rendered change mask.
	KeyChangeMask = "change_mask"

	// KeyAddr is the log attribute for a single learned address, gateway,
	// route, or DNS server address.
	KeyAddr = "addr"
)

// NewForInterface returns a new logger prefixed and scoped to the named
// interface, for use by an [slaacsvc.Engine] and its collaborators.
func NewForInterface(baseLogger *slog.Logger, ifname string) (l *slog.Logger) {
	return baseLogger.With(slogutil.KeyPrefix, PrefixEngine, KeyInterface, ifname)
}
