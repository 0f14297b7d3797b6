package validation

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/arbmuseum/arb/backend/internal/logger"
	"go.uber.org/zap"
)

// Check probes one backing service
type Check func(ctx context.Context) error

// ServiceValidator runs startup checks for the services an operator marked
// as required with ARB_REQUIRE_<NAME>=true. Optional services that fail are
// only logged.
type ServiceValidator struct {
	checks   map[string]Check
	required map[string]bool
	timeout  time.Duration
}

// NewServiceValidator reads the ARB_REQUIRE_* environment variables
func NewServiceValidator() *ServiceValidator {
	return &ServiceValidator{
		checks:   make(map[string]Check),
		required: make(map[string]bool),
		timeout:  10 * time.Second,
	}
}

// Register adds a check. It is required when ARB_REQUIRE_<NAME> is truthy.
func (sv *ServiceValidator) Register(name string, check Check) {
	sv.checks[name] = check
	if isTruthy(os.Getenv("ARB_REQUIRE_" + strings.ToUpper(name))) {
		sv.required[name] = true
	}
}

// Require marks name as required regardless of the environment
func (sv *ServiceValidator) Require(name string) {
	sv.required[name] = true
}

// ValidateServices runs every registered check. It fails on the first
// required service that does not answer, or on a required service that
// has no check registered.
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	for name := range sv.required {
		if _, ok := sv.checks[name]; !ok {
			return fmt.Errorf("required service '%s' is not configured", name)
		}
	}

	names := make([]string, 0, len(sv.checks))
	for name := range sv.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := sv.checks[name](timeoutCtx)
		cancel()

		switch {
		case err == nil:
			logger.Log.Info("✅ Service validated", zap.String("service", name))
		case sv.required[name]:
			logger.Log.Error("❌ Required service validation failed", zap.String("service", name), zap.Error(err))
			return fmt.Errorf("required service '%s' validation failed: %w", name, err)
		default:
			logger.Log.Warn("Optional service unavailable", zap.String("service", name), zap.Error(err))
		}
	}
	return nil
}

// isTruthy checks if a string value represents a truthy value
func isTruthy(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
