package main

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/slaacd/internal/aghtime"
	"github.com/AdguardTeam/slaacd/internal/slaacsvc"
	"gopkg.in/yaml.v3"
)

// config is the on-disk process configuration: one engine per uplink
// interface. It is read-only input; the engine never writes learned state
// back to it.
type config struct {
	Interfaces []*interfaceConfig `yaml:"interfaces"`

	Verbose bool `yaml:"verbose"`
}

// type check
var _ validate.Interface = (*config)(nil)

// Validate implements the [validate.Interface] interface for *config.
func (c *config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	if len(c.Interfaces) == 0 {
		return errors.Error("interfaces: must not be empty")
	}

	var errs []error
	for i, ifaceConf := range c.Interfaces {
		if vErr := ifaceConf.Validate(); vErr != nil {
			errs = append(errs, fmt.Errorf("interfaces: at index %d: %w", i, vErr))
		}
	}

	return errors.Join(errs...)
}

// interfaceConfig is the on-disk configuration of a single uplink
// interface's engine.
type interfaceConfig struct {
	// IfName is the name of the uplink interface, e.g. "eth0".
	IfName string `yaml:"interface"`

	// NetworkID is the stable-privacy salt, see [slaacsvc.Config.NetworkID].
	NetworkID string `yaml:"network_id"`

	// StableType is the stable-privacy domain tag, see
	// [slaacsvc.Config.StableType].
	StableType string `yaml:"stable_type"`

	// NamespacePath is the bind-mounted network-namespace path to enter
	// before socket operations, or empty to use the current namespace.
	NamespacePath string `yaml:"namespace_path"`

	// AddrGenMode selects the address completer strategy: "eui64" or
	// "stable-privacy".
	AddrGenMode string `yaml:"addr_gen_mode"`

	// MaxAddresses caps the number of autoconfigured addresses, 0 meaning
	// unbounded.
	MaxAddresses int `yaml:"max_addresses"`

	// RouterSolicitations is the number of Router Solicitations sent in a
	// burst.
	RouterSolicitations int32 `yaml:"router_solicitations"`

	// RouterSolicitationInterval is the spacing between Router
	// Solicitations within a burst.
	RouterSolicitationInterval aghtime.Duration `yaml:"router_solicitation_interval"`
}

// type check
var _ validate.Interface = (*interfaceConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *interfaceConfig.
func (c *interfaceConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("interface", c.IfName),
	}

	switch c.AddrGenMode {
	case "", "eui64", "stable-privacy":
		// Valid.
	default:
		errs = append(errs, fmt.Errorf("addr_gen_mode: unknown value %q", c.AddrGenMode))
	}

	return errors.Join(errs...)
}

// addrGenMode maps the on-disk string to [slaacsvc.AddrGenMode].
func (c *interfaceConfig) addrGenMode() (mode slaacsvc.AddrGenMode) {
	if c.AddrGenMode == "stable-privacy" {
		return slaacsvc.AddrGenStablePrivacy
	}

	return slaacsvc.AddrGenEUI64
}

// readConfig reads and validates the YAML configuration at path.
func readConfig(path string) (c *config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &config{}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return c, nil
}
