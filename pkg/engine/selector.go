package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// Options selects and configures the sensing engine
type Options struct {
	Kind       Kind
	Binary     string
	Args       []string
	Credential string
}

// Select picks the engine for this deployment. Anything that prevents the
// process engine from producing readings degrades to UnavailableEngine.
func Select(opts Options, logger *zap.Logger) (Engine, string) {
	switch opts.Kind {
	case KindNone:
		reason := "Engine disabled by configuration"
		logger.Warn("Sensing engine not available", zap.String("reason", reason))
		return NewUnavailableEngine(reason), reason

	case KindProcess, "":
		pe := NewProcessEngine(opts.Binary, opts.Args, opts.Credential, logger)
		if opts.Credential == "" {
			reason := "No API key provided (set SMARTSPECTRA_API_KEY or --api-key)"
			logger.Warn("Sensing engine not available", zap.String("reason", reason))
			return NewUnavailableEngine(reason), reason
		}
		if !pe.Available() {
			reason := fmt.Sprintf("Engine binary %q not found in PATH", opts.Binary)
			logger.Warn("Sensing engine not available", zap.String("reason", reason))
			return NewUnavailableEngine(reason), reason
		}
		reason := fmt.Sprintf("Using external sensing engine %q", opts.Binary)
		logger.Info("Sensing engine ready", zap.String("binary", opts.Binary))
		return pe, reason

	default:
		reason := fmt.Sprintf("Unknown engine kind %q", opts.Kind)
		logger.Warn("Sensing engine not available", zap.String("reason", reason))
		return NewUnavailableEngine(reason), reason
	}
}
