// Package utility provides small, shared helpers used across the module
// that don't belong to any single protocol component.
package utility

import "go.uber.org/zap"

// GetLogger returns a development-mode sugared logger suitable for local
// use and tests: human-readable output, debug level enabled. Callers
// wanting production defaults (JSON output, info level) should build
// their own *zap.Logger with zap.NewProduction instead; this package
// only provides the convenience constructor the rest of the module uses
// in its own tests and examples.
func GetLogger() *zap.SugaredLogger {
	logger, _ := zap.NewDevelopment()
	return logger.Sugar()
}
