package swiftftr

import "github.com/Network-Weather/swiftftr/internal/errs"

// The engine's error taxonomy (spec §7) is closed and flat: every
// public operation fails with exactly one of these kinds. They are
// defined in internal/errs and re-exported here by alias so both the
// engine's internal layers (internal/probesock) and its public API
// share one set of concrete types. The Error methods have pointer
// receivers, so callers match with a pointer target:
// var e *swiftftr.SocketCreateFailedError; errors.As(err, &e).
type (
	ResolutionFailedError      = errs.ResolutionFailedError
	SocketCreateFailedError    = errs.SocketCreateFailedError
	SetOptFailedError          = errs.SetOptFailedError
	SendFailedError            = errs.SendFailedError
	InterfaceBindFailedError   = errs.InterfaceBindFailedError
	SourceIPBindFailedError    = errs.SourceIPBindFailedError
	InvalidConfigurationError  = errs.InvalidConfigurationError
	CancelledError             = errs.CancelledError
	ASNResolverFailedError     = errs.ASNResolverFailedError
	STUNFailedError            = errs.STUNFailedError
	PlatformNotSupportedError  = errs.PlatformNotSupportedError
)
