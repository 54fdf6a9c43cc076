package slaacsvc

import "github.com/AdguardTeam/golibs/errors"

// Sentinel errors returned by this package's exported operations.
const (
	// errAlreadyStarted is returned by [Engine.Start] when the engine has
	// already been started.
	errAlreadyStarted errors.Error = "engine already started"
)
