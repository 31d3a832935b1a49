package platform

import (
	"log/slog"

	"github.com/gaurav-prasanna/bookpipe/core"
)

// New returns the strategy variant for the handle's platform. Unknown
// platforms get the digi4school strategy.
func New(handle core.DocumentHandle, f core.Fetcher, logger *slog.Logger) core.Strategy {
	switch handle.Platform {
	case core.PlatformHpthek:
		return NewHpthek(handle, f, logger)
	case core.PlatformScook:
		return NewScook(handle, f, logger)
	default:
		return NewDigi4School(handle, f, logger)
	}
}

// Resolve fills in the platform and domain of handle from its landing URL.
func Resolve(handle core.DocumentHandle, logger *slog.Logger) core.DocumentHandle {
	if logger == nil {
		logger = slog.Default()
	}
	p, ok := Detect(handle.LandingURL)
	if !ok {
		logger.Warn("Platform not detected, defaulting to digi4school.", "url", handle.LandingURL)
	}
	handle.Platform = p
	handle.Domain = Domain(p)
	return handle
}
