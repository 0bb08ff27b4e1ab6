package paradigm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"peira/internal/paradigmid"
	"peira/internal/rig"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrParadigmExists   = errors.New("paradigm already registered")
	ErrParadigmNotFound = errors.New("paradigm not found")
	ErrVersionMismatch  = errors.New("registry version mismatch")
	ErrIncompatible     = errors.New("paradigm incompatible with rig profile")
)

type CompatibilityFn func(profile string) error

type Factory func() Paradigm

type Spec struct {
	Name          string
	Factory       Factory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredParadigm struct {
	factory       Factory
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]registeredParadigm
}{
	m: make(map[string]registeredParadigm),
}

func Register(name string, factory Factory) error {
	return RegisterWithSpec(Spec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterWithSpec(spec Spec) error {
	if spec.Name == "" {
		return errors.New("paradigm name is required")
	}
	if spec.Factory == nil {
		return errors.New("paradigm factory is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrParadigmExists, spec.Name)
	}
	registry.m[spec.Name] = registeredParadigm{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

func Resolve(name, profile string) (Paradigm, error) {
	lookupName := paradigmid.Normalize(name)

	registry.mu.RLock()
	entry, ok := registry.m[lookupName]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParadigmNotFound, name)
	}
	if err := compatibilityError(lookupName, entry, profile); err != nil {
		return nil, err
	}
	return entry.factory(), nil
}

func CompatibleWithProfile(name, profile string) bool {
	lookupName := paradigmid.Normalize(name)

	registry.mu.RLock()
	entry, ok := registry.m[lookupName]
	registry.mu.RUnlock()
	if !ok {
		return false
	}
	return compatibilityError(lookupName, entry, profile) == nil
}

func ListForProfile(profile string) []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name, entry := range registry.m {
		if compatibilityError(name, entry, profile) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for n := range registry.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func compatibilityError(name string, entry registeredParadigm, profile string) error {
	if entry.schemaVersion != SupportedSchemaVersion || entry.codecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: %s", ErrVersionMismatch, name)
	}
	if entry.compatible != nil {
		if err := entry.compatible(profile); err != nil {
			return fmt.Errorf("%w: paradigm=%s: %v", ErrIncompatible, name, err)
		}
	}
	return nil
}

func resetRegistryForTests() {
	registry.mu.Lock()
	registry.m = make(map[string]registeredParadigm)
	registry.mu.Unlock()

	initializeDefaultParadigms()
}

func init() {
	initializeDefaultParadigms()
}

func initializeDefaultParadigms() {
	err := RegisterWithSpec(Spec{
		Name: "rating",
		Factory: func() Paradigm {
			p, err := NewRatingParadigm(RatingConfig{})
			if err != nil {
				panic(err)
			}
			return p
		},
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(profile string) error {
			_, err := rig.ConstructRig("rating", profile)
			return err
		},
	})
	if err != nil {
		panic(err)
	}
	err = RegisterWithSpec(Spec{
		Name: "detection",
		Factory: func() Paradigm {
			p, err := NewDetectionParadigm(DetectionConfig{})
			if err != nil {
				panic(err)
			}
			return p
		},
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(profile string) error {
			_, err := rig.ConstructRig("detection", profile)
			return err
		},
	})
	if err != nil {
		panic(err)
	}
}
