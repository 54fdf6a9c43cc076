// Command slaacd runs one IPv6 SLAAC engine per configured uplink
// interface, logging change and timeout events in the human-readable
// format described by spec.md §6.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/slaacd/internal/icmp6"
	"github.com/AdguardTeam/slaacd/internal/netlinkplatform"
	"github.com/AdguardTeam/slaacd/internal/slaacsvc"
)

func main() {
	ctx := context.Background()

	confPath := "slaacd.yaml"
	if len(os.Args) > 1 {
		confPath = os.Args[1]
	}

	conf, err := readConfig(confPath)
	errors.Check(err)

	lvl := slog.LevelInfo
	if conf.Verbose {
		lvl = slog.LevelDebug
	}

	baseLogger := slogutil.New(&slogutil.Config{
		Format:       slogutil.FormatAdGuardLegacy,
		Level:        lvl,
		AddTimestamp: true,
	})

	baseLogger.InfoContext(ctx, "starting slaacd", "pid", os.Getpid())

	engines, err := startEngines(ctx, baseLogger, conf)
	errors.Check(err)

	sigHdlr := newSignalHandler(baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix), engines)

	os.Exit(int(sigHdlr.handle(ctx)))
}

// engineService adapts an already-running [slaacsvc.Engine] to
// [service.Interface] so the signal handler can shut every interface down
// uniformly. The engine is started by startEngines before being wrapped
// here, so Start is a no-op.
type engineService struct {
	ifname string
	engine *slaacsvc.Engine
}

// type check
var _ service.Interface = (*engineService)(nil)

// Start implements the [service.Interface] interface for *engineService.
func (s *engineService) Start(context.Context) (err error) {
	return nil
}

// Shutdown implements the [service.Interface] interface for *engineService.
func (s *engineService) Shutdown(_ context.Context) (err error) {
	s.engine.Dispose()

	return nil
}

// startEngines builds and starts one engine per configured interface.
func startEngines(
	ctx context.Context,
	baseLogger *slog.Logger,
	conf *config,
) (engines container.KeyValues[string, *engineService], err error) {
	for _, ifaceConf := range conf.Interfaces {
		iface, ifErr := net.InterfaceByName(ifaceConf.IfName)
		if ifErr != nil {
			return nil, fmt.Errorf("looking up interface %s: %w", ifaceConf.IfName, ifErr)
		}

		srcIP, ifErr := linkLocalAddr(iface)
		if ifErr != nil {
			return nil, fmt.Errorf("finding link-local address on %s: %w", ifaceConf.IfName, ifErr)
		}

		mtu, hwAddr, ifErr := netlinkplatform.LinkInfo(iface.Index)
		if ifErr != nil {
			return nil, fmt.Errorf("reading link info for %s: %w", ifaceConf.IfName, ifErr)
		}

		platform := &netlinkplatform.Platform{NamespacePath: ifaceConf.NamespacePath}
		transport := icmp6.New(baseLogger, iface, srcIP, hwAddr, mtu, platform)

		engCfg := &slaacsvc.Config{
			Logger:                     baseLogger,
			Platform:                   platform,
			Transport:                  transport,
			IfName:                     ifaceConf.IfName,
			NetworkID:                  ifaceConf.NetworkID,
			StableType:                 ifaceConf.StableType,
			AddrGenMode:                ifaceConf.addrGenMode(),
			Ifindex:                    iface.Index,
			MaxAddresses:               ifaceConf.MaxAddresses,
			RouterSolicitations:        orDefault32(ifaceConf.RouterSolicitations, 3),
			RouterSolicitationInterval: orDefaultDuration(ifaceConf.RouterSolicitationInterval.Duration, 4*time.Second),
		}

		logger := baseLogger.With("iface", ifaceConf.IfName)

		eng, engErr := slaacsvc.NewEngine(engCfg, onConfigChanged(logger), onRATimeout(logger, ifaceConf.IfName))
		if engErr != nil {
			return nil, fmt.Errorf("constructing engine for %s: %w", ifaceConf.IfName, engErr)
		}
		transport.SetEngine(eng)

		// hwAddr is already known at this point, so the IID is set before
		// Start to close the window where an early RA could arrive and be
		// completed against a still-nil IID. SetIID itself skips soliciting
		// when called before Start, so this doesn't race the transport's
		// socket setup either.
		if engCfg.AddrGenMode == slaacsvc.AddrGenEUI64 {
			iid, iidErr := eui64IID(hwAddr)
			if iidErr != nil {
				return nil, fmt.Errorf("deriving EUI-64 IID for %s: %w", ifaceConf.IfName, iidErr)
			}

			eng.SetIID(iid)
		}

		if engErr = eng.Start(ctx); engErr != nil {
			return nil, fmt.Errorf("starting engine for %s: %w", ifaceConf.IfName, engErr)
		}

		engines = append(engines, container.KeyValue[string, *engineService]{
			Key:   ifaceConf.IfName,
			Value: &engineService{ifname: ifaceConf.IfName, engine: eng},
		})
	}

	return engines, nil
}

// onConfigChanged returns a callback that logs every emitted
// config-changed event. The engine already logs its own human-readable
// line; this hook is where a real deployment would push the snapshot to
// another component (kernel address installer, DHCPv6 client supervisor).
func onConfigChanged(logger *slog.Logger) (f func(slaacsvc.Snapshot, slaacsvc.ChangeMask)) {
	return func(_ slaacsvc.Snapshot, mask slaacsvc.ChangeMask) {
		logger.Debug("config changed", "mask", mask)
	}
}

// onRATimeout returns a callback that logs the ra_timeout event.
func onRATimeout(logger *slog.Logger, ifname string) (f func()) {
	return func() {
		logger.Warn("no router advertisement received before timeout", "iface", ifname)
	}
}

// eui64IID derives a modified EUI-64 interface identifier from a 6-byte
// hardware address, per RFC 4291 appendix A: the address is split around a
// 0xFFFE filler and the universal/local bit is flipped.
func eui64IID(hwAddr net.HardwareAddr) (iid [8]byte, err error) {
	if len(hwAddr) != 6 {
		return iid, fmt.Errorf("hardware address %s: %w: want 6 bytes, got %d", hwAddr, errors.ErrOutOfRange, len(hwAddr))
	}

	iid[0] = hwAddr[0] ^ 0x02
	iid[1] = hwAddr[1]
	iid[2] = hwAddr[2]
	iid[3] = 0xFF
	iid[4] = 0xFE
	iid[5] = hwAddr[3]
	iid[6] = hwAddr[4]
	iid[7] = hwAddr[5]

	return iid, nil
}

// linkLocalAddr returns the first link-local unicast IPv6 address on iface.
func linkLocalAddr(iface *net.Interface) (addr netip.Addr, err error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, err
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}

		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}

		ip = ip.Unmap()
		if ip.Is6() && ip.IsLinkLocalUnicast() {
			return ip, nil
		}
	}

	return netip.Addr{}, errors.Error("no link-local address found")
}

// orDefault32 returns v if it's positive, else def.
func orDefault32(v, def int32) (res int32) {
	if v <= 0 {
		return def
	}

	return v
}

// orDefaultDuration returns d if it's positive, else def.
func orDefaultDuration(d, def time.Duration) (res time.Duration) {
	if d <= 0 {
		return def
	}

	return d
}
