package stimgen

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

const (
	DistributionGeometric   = "geometric"
	DistributionExponential = "exponential"
	DistributionUniform     = "uniform"
)

var (
	ErrDuplicateDistribution = errors.New("distribution already registered")
	ErrDistributionNotFound  = errors.New("unsupported jitter distribution")
)

// SamplerFactory builds a sampler from shared params. Factories validate
// their own parameter subset, so a bad bound combination surfaces at build
// time rather than mid-sequence.
type SamplerFactory func(params Params) (Sampler, error)

// DistributionSpec registers one interval family. Aliases are extra
// user-facing spellings resolved to Name.
type DistributionSpec struct {
	Name    string
	Aliases []string
	Factory SamplerFactory
}

var distributionRegistry = struct {
	mu      sync.RWMutex
	m       map[string]SamplerFactory
	aliases map[string]string
}{
	m:       make(map[string]SamplerFactory),
	aliases: make(map[string]string),
}

func RegisterDistribution(spec DistributionSpec) error {
	name := strings.ToLower(strings.TrimSpace(spec.Name))
	if name == "" {
		return errors.New("distribution name is required")
	}
	if spec.Factory == nil {
		return errors.New("distribution factory is required")
	}

	distributionRegistry.mu.Lock()
	defer distributionRegistry.mu.Unlock()

	if _, exists := distributionRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDistribution, name)
	}
	if canonical, exists := distributionRegistry.aliases[name]; exists {
		return fmt.Errorf("%w: %s aliases %s", ErrDuplicateDistribution, name, canonical)
	}
	for _, alias := range spec.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" || alias == name {
			continue
		}
		if _, exists := distributionRegistry.m[alias]; exists {
			return fmt.Errorf("%w: alias %s", ErrDuplicateDistribution, alias)
		}
		if canonical, exists := distributionRegistry.aliases[alias]; exists {
			return fmt.Errorf("%w: alias %s aliases %s", ErrDuplicateDistribution, alias, canonical)
		}
	}

	distributionRegistry.m[name] = spec.Factory
	for _, alias := range spec.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" || alias == name {
			continue
		}
		distributionRegistry.aliases[alias] = name
	}
	return nil
}

// Distribution resolves a name or alias to its sampler factory.
func Distribution(name string) (SamplerFactory, error) {
	canonical := NormalizeDistributionName(name)

	distributionRegistry.mu.RLock()
	factory, ok := distributionRegistry.m[canonical]
	distributionRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDistributionNotFound, canonical)
	}
	return factory, nil
}

// AvailableDistributions lists the registered interval families, sorted.
func AvailableDistributions() []string {
	distributionRegistry.mu.RLock()
	defer distributionRegistry.mu.RUnlock()

	names := make([]string, 0, len(distributionRegistry.m))
	for name := range distributionRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeDistributionName maps user-facing spellings onto canonical
// distribution names. The empty name selects the geometric family; unknown
// names pass through for the caller to reject.
func NormalizeDistributionName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return DistributionGeometric
	}

	distributionRegistry.mu.RLock()
	defer distributionRegistry.mu.RUnlock()

	if canonical, ok := distributionRegistry.aliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// Params collects the knobs shared by the sampler families. Mean, Min and
// Max are pointers because the uniform family derives whichever of the
// three is left nil; the skewed families substitute defaults for nil Mean
// and Min and treat nil Max as uncapped. Discrete only matters for the
// uniform family since the skewed families carry discreteness in their
// name.
type Params struct {
	Rand        *rand.Rand
	Mean        *float64
	Min         *float64
	Max         *float64
	Discrete    bool
	Tolerance   float64
	MaxAttempts int
}

// SamplerFromConfig builds the sampler registered for a distribution name.
func SamplerFromConfig(name string, params Params) (Sampler, error) {
	factory, err := Distribution(name)
	if err != nil {
		return nil, err
	}
	return factory(params)
}

func skewedFromParams(params Params, discrete bool) *SkewedSampler {
	sampler := &SkewedSampler{
		Rand:        params.Rand,
		Mean:        DefaultMean,
		Min:         DefaultMin,
		Discrete:    discrete,
		Tolerance:   params.Tolerance,
		MaxAttempts: params.MaxAttempts,
	}
	if params.Mean != nil {
		sampler.Mean = *params.Mean
	}
	if params.Min != nil {
		sampler.Min = *params.Min
	}
	if params.Max != nil {
		sampler.Max = *params.Max
	}
	return sampler
}

func uniformFromParams(params Params) (Sampler, error) {
	bounds, err := ResolveUniformBounds(params.Mean, params.Min, params.Max)
	if err != nil {
		return nil, err
	}
	return &UniformSampler{
		Rand:        params.Rand,
		Bounds:      bounds,
		Tolerance:   params.Tolerance,
		Discrete:    params.Discrete,
		MaxAttempts: params.MaxAttempts,
	}, nil
}

func init() {
	initializeDefaultDistributions()
}

func initializeDefaultDistributions() {
	specs := []DistributionSpec{
		{
			Name:    DistributionGeometric,
			Aliases: []string{"geom", "discrete"},
			Factory: func(params Params) (Sampler, error) {
				return skewedFromParams(params, true), nil
			},
		},
		{
			Name:    DistributionExponential,
			Aliases: []string{"exp", "continuous"},
			Factory: func(params Params) (Sampler, error) {
				return skewedFromParams(params, false), nil
			},
		},
		{
			Name:    DistributionUniform,
			Aliases: []string{"flat"},
			Factory: uniformFromParams,
		},
	}
	for _, spec := range specs {
		if err := RegisterDistribution(spec); err != nil {
			panic(err)
		}
	}
}

func resetDistributionRegistryForTests() {
	distributionRegistry.mu.Lock()
	distributionRegistry.m = make(map[string]SamplerFactory)
	distributionRegistry.aliases = make(map[string]string)
	distributionRegistry.mu.Unlock()

	initializeDefaultDistributions()
}
