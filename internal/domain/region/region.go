package region

import (
	"sort"
	"strings"

	"github.com/omnisouq/gateway/internal/domain/errors"
)

// Config describes one deployment region. Immutable after startup.
type Config struct {
	Code             string
	Currency         string
	PaymentProvider  string
	ShippingProvider string
	IsActive         bool
}

// Registry is a read-only region lookup table built once at process start.
// No locking is needed: the map is never mutated after construction.
type Registry struct {
	regions map[string]Config
}

// NewRegistry builds a registry from the configured region table.
func NewRegistry(configs []Config) *Registry {
	regions := make(map[string]Config, len(configs))
	for _, c := range configs {
		regions[strings.ToUpper(c.Code)] = c
	}
	return &Registry{regions: regions}
}

// Resolve returns the config for a region code. Inactive regions fail closed.
func (r *Registry) Resolve(code string) (Config, error) {
	cfg, ok := r.regions[strings.ToUpper(code)]
	if !ok {
		return Config{}, errors.NewDomainError(
			"region_not_found",
			"no configuration for region "+code,
			errors.ErrRegionNotFound,
		)
	}
	if !cfg.IsActive {
		return Config{}, errors.NewDomainError(
			"region_inactive",
			"region "+code+" is not active",
			errors.ErrRegionInactive,
		)
	}
	return cfg, nil
}

// Codes returns all configured region codes, active or not, sorted.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.regions))
	for code := range r.regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
