package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"peira/internal/paradigmid"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrDuplicateDevice = errors.New("device already registered")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrVersionMismatch = errors.New("registry version mismatch")
	ErrIncompatible    = errors.New("device incompatible with paradigm")
)

type CompatibilityFn func(paradigm string) error

type OutputFactory func() OutputDevice

type InputFactory func() InputDevice

type OutputSpec struct {
	Name          string
	Factory       OutputFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type InputSpec struct {
	Name          string
	Factory       InputFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredOutput struct {
	factory       OutputFactory
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

type registeredInput struct {
	factory       InputFactory
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

var outputRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredOutput
}{
	m: make(map[string]registeredOutput),
}

var inputRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredInput
}{
	m: make(map[string]registeredInput),
}

func RegisterOutput(name string, factory OutputFactory) error {
	return RegisterOutputWithSpec(OutputSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterOutputWithSpec(spec OutputSpec) error {
	if spec.Name == "" {
		return errors.New("output device name is required")
	}
	if spec.Factory == nil {
		return errors.New("output device factory is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	outputRegistry.mu.Lock()
	defer outputRegistry.mu.Unlock()

	if _, exists := outputRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: output %s", ErrDuplicateDevice, spec.Name)
	}
	outputRegistry.m[spec.Name] = registeredOutput{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

func ResolveOutput(name, paradigm string) (OutputDevice, error) {
	entry, resolvedName, ok := findRegisteredOutput(name)
	if !ok {
		return nil, fmt.Errorf("%w: output %s", ErrDeviceNotFound, name)
	}
	if err := outputCompatibilityError(resolvedName, entry, paradigmid.Normalize(paradigm)); err != nil {
		return nil, err
	}
	return entry.factory(), nil
}

func OutputCompatibleWithParadigm(name, paradigm string) bool {
	entry, resolvedName, ok := findRegisteredOutput(name)
	if !ok {
		return false
	}
	return outputCompatibilityError(resolvedName, entry, paradigmid.Normalize(paradigm)) == nil
}

func ListOutputsForParadigm(paradigm string) []string {
	normalized := paradigmid.Normalize(paradigm)

	outputRegistry.mu.RLock()
	defer outputRegistry.mu.RUnlock()

	names := make([]string, 0, len(outputRegistry.m))
	for name, entry := range outputRegistry.m {
		if outputCompatibilityError(name, entry, normalized) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListOutputs() []string {
	outputRegistry.mu.RLock()
	defer outputRegistry.mu.RUnlock()

	names := make([]string, 0, len(outputRegistry.m))
	for n := range outputRegistry.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func outputCompatibilityError(name string, entry registeredOutput, paradigm string) error {
	if entry.schemaVersion != SupportedSchemaVersion || entry.codecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: %s", ErrVersionMismatch, name)
	}
	if entry.compatible != nil {
		if err := entry.compatible(paradigm); err != nil {
			return fmt.Errorf("%w: output=%s: %v", ErrIncompatible, name, err)
		}
	}
	return nil
}

func findRegisteredOutput(name string) (registeredOutput, string, bool) {
	lookupName := strings.TrimSpace(name)
	if lookupName == "" {
		return registeredOutput{}, "", false
	}

	outputRegistry.mu.RLock()
	defer outputRegistry.mu.RUnlock()

	if entry, ok := outputRegistry.m[lookupName]; ok {
		return entry, lookupName, true
	}

	canonicalName := CanonicalOutputName(lookupName)
	if canonicalName != "" && canonicalName != lookupName {
		if entry, ok := outputRegistry.m[canonicalName]; ok {
			return entry, canonicalName, true
		}
	}
	return registeredOutput{}, "", false
}

func RegisterInput(name string, factory InputFactory) error {
	return RegisterInputWithSpec(InputSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterInputWithSpec(spec InputSpec) error {
	if spec.Name == "" {
		return errors.New("input device name is required")
	}
	if spec.Factory == nil {
		return errors.New("input device factory is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	inputRegistry.mu.Lock()
	defer inputRegistry.mu.Unlock()

	if _, exists := inputRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: input %s", ErrDuplicateDevice, spec.Name)
	}
	inputRegistry.m[spec.Name] = registeredInput{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

func ResolveInput(name, paradigm string) (InputDevice, error) {
	inputRegistry.mu.RLock()
	entry, ok := inputRegistry.m[name]
	inputRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: input %s", ErrDeviceNotFound, name)
	}
	if err := inputCompatibilityError(name, entry, paradigmid.Normalize(paradigm)); err != nil {
		return nil, err
	}
	return entry.factory(), nil
}

func InputCompatibleWithParadigm(name, paradigm string) bool {
	inputRegistry.mu.RLock()
	entry, ok := inputRegistry.m[name]
	inputRegistry.mu.RUnlock()
	if !ok {
		return false
	}
	return inputCompatibilityError(name, entry, paradigmid.Normalize(paradigm)) == nil
}

func ListInputsForParadigm(paradigm string) []string {
	normalized := paradigmid.Normalize(paradigm)

	inputRegistry.mu.RLock()
	defer inputRegistry.mu.RUnlock()

	names := make([]string, 0, len(inputRegistry.m))
	for name, entry := range inputRegistry.m {
		if inputCompatibilityError(name, entry, normalized) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListInputs() []string {
	inputRegistry.mu.RLock()
	defer inputRegistry.mu.RUnlock()

	names := make([]string, 0, len(inputRegistry.m))
	for n := range inputRegistry.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func inputCompatibilityError(name string, entry registeredInput, paradigm string) error {
	if entry.schemaVersion != SupportedSchemaVersion || entry.codecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: %s", ErrVersionMismatch, name)
	}
	if entry.compatible != nil {
		if err := entry.compatible(paradigm); err != nil {
			return fmt.Errorf("%w: input=%s: %v", ErrIncompatible, name, err)
		}
	}
	return nil
}

func resetRegistriesForTests() {
	outputRegistry.mu.Lock()
	outputRegistry.m = make(map[string]registeredOutput)
	outputRegistry.mu.Unlock()

	inputRegistry.mu.Lock()
	inputRegistry.m = make(map[string]registeredInput)
	inputRegistry.mu.Unlock()

	initializeDefaultDevices()
}
