package simulation

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Algorithm names a frame-allocation and eviction policy.
type Algorithm string

// The supported algorithms.
const (
	AlgorithmLRU Algorithm = "LRU"
	AlgorithmWS  Algorithm = "WS"
)

// ParseAlgorithm converts a case-insensitive name into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToUpper(s)) {
	case AlgorithmLRU:
		return AlgorithmLRU, nil
	case AlgorithmWS:
		return AlgorithmWS, nil
	}

	return "", &ConfigError{
		Field:  "algorithm",
		Reason: fmt.Sprintf("unknown algorithm %q, expecting LRU or WS", s),
	}
}

// DefaultFrameSize is the size of a frame and of a page, in bytes.
const DefaultFrameSize = 4096

// A TraceSpec names a workload and the trace file it replays.
type TraceSpec struct {
	Name string
	Path string
}

// ParseTraceSpec parses a "name=path" pair. A bare path is named after its
// file name without the extension.
func ParseTraceSpec(s string) (TraceSpec, error) {
	name, path, found := strings.Cut(s, "=")
	if !found {
		path = s
		name = traceNameFromPath(s)
	}

	if name == "" || path == "" {
		return TraceSpec{}, &ConfigError{
			Field:  "traces",
			Reason: fmt.Sprintf("malformed trace %q, expecting name=path", s),
		}
	}

	return TraceSpec{Name: name, Path: path}, nil
}

func traceNameFromPath(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}

	return base
}

// DefaultTraces are the two workloads replayed when no trace is given.
func DefaultTraces() []TraceSpec {
	return []TraceSpec{
		{Name: "bzip", Path: "bzip.trace"},
		{Name: "gcc", Path: "gcc.trace"},
	}
}

// Config holds the parameters of a simulation run.
type Config struct {
	Algorithm Algorithm

	// NumFrames is the number of physical frames shared by all workloads.
	NumFrames int

	// Quantum is the number of references a workload resolves per turn.
	Quantum int

	// WSSize is the capacity of each working set. Only used by WS.
	WSSize int

	// MaxReferences caps the references resolved in total. Zero means the
	// traces are replayed to the end.
	MaxReferences uint64

	FrameSize uint64
	Traces    []TraceSpec
}

// DefaultConfig returns a configuration with the default frame size and
// traces. The algorithm, the frame count and the quantum are left for the
// caller to set.
func DefaultConfig() *Config {
	return &Config{
		FrameSize: DefaultFrameSize,
		Traces:    DefaultTraces(),
	}
}

// Validate checks that a simulation can be built from the configuration.
func (c *Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmLRU, AlgorithmWS:
	case "":
		return &ConfigError{Field: "algorithm", Reason: "not set"}
	default:
		return &ConfigError{
			Field:  "algorithm",
			Reason: fmt.Sprintf("unknown algorithm %q", c.Algorithm),
		}
	}

	if c.NumFrames < 1 {
		return &ConfigError{
			Field:  "frames",
			Reason: fmt.Sprintf("must be at least 1, got %d", c.NumFrames),
		}
	}

	if c.Quantum < 1 {
		return &ConfigError{
			Field:  "q",
			Reason: fmt.Sprintf("must be at least 1, got %d", c.Quantum),
		}
	}

	if c.Algorithm == AlgorithmWS && c.WSSize < 1 {
		return &ConfigError{
			Field:  "ws_size",
			Reason: fmt.Sprintf("must be at least 1, got %d", c.WSSize),
		}
	}

	if c.FrameSize == 0 || c.FrameSize&(c.FrameSize-1) != 0 {
		return &ConfigError{
			Field:  "frame_size",
			Reason: fmt.Sprintf("%d is not a power of two", c.FrameSize),
		}
	}

	return c.validateTraces()
}

func (c *Config) validateTraces() error {
	if len(c.Traces) == 0 {
		return &ConfigError{Field: "traces", Reason: "no trace given"}
	}

	seen := make(map[string]bool)
	for _, t := range c.Traces {
		if t.Name == "" {
			return &ConfigError{
				Field:  "traces",
				Reason: fmt.Sprintf("trace %q has no name", t.Path),
			}
		}

		if seen[t.Name] {
			return &ConfigError{
				Field:  "traces",
				Reason: fmt.Sprintf("duplicate workload name %q", t.Name),
			}
		}

		seen[t.Name] = true
	}

	return nil
}

// The environment variables read by LoadConfigFromEnv.
const (
	EnvAlgorithm     = "PAGESIM_ALGORITHM"
	EnvFrames        = "PAGESIM_FRAMES"
	EnvQuantum       = "PAGESIM_QUANTUM"
	EnvWSSize        = "PAGESIM_WS_SIZE"
	EnvMaxReferences = "PAGESIM_MAX_REFERENCES"
	EnvFrameSize     = "PAGESIM_FRAME_SIZE"
	EnvTraces        = "PAGESIM_TRACES"
)

// LoadConfigFromEnv creates a default configuration and overrides it with
// the PAGESIM_* environment variables. The given dotenv files are loaded
// first. Variables already set in the environment take precedence over the
// files. PAGESIM_TRACES is a comma-separated list of name=path pairs.
func LoadConfigFromEnv(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	config := DefaultConfig()

	if val := os.Getenv(EnvAlgorithm); val != "" {
		algorithm, err := ParseAlgorithm(val)
		if err != nil {
			return nil, err
		}

		config.Algorithm = algorithm
	}

	if err := envInt(EnvFrames, "frames", &config.NumFrames); err != nil {
		return nil, err
	}

	if err := envInt(EnvQuantum, "q", &config.Quantum); err != nil {
		return nil, err
	}

	if err := envInt(EnvWSSize, "ws_size", &config.WSSize); err != nil {
		return nil, err
	}

	err := envUint(EnvMaxReferences, "max_references", &config.MaxReferences)
	if err != nil {
		return nil, err
	}

	if err := envUint(EnvFrameSize, "frame_size", &config.FrameSize); err != nil {
		return nil, err
	}

	if val := os.Getenv(EnvTraces); val != "" {
		config.Traces = nil

		for _, item := range strings.Split(val, ",") {
			spec, err := ParseTraceSpec(strings.TrimSpace(item))
			if err != nil {
				return nil, err
			}

			config.Traces = append(config.Traces, spec)
		}
	}

	return config, nil
}

func envInt(key, field string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return &ConfigError{
			Field:  field,
			Reason: fmt.Sprintf("%s=%q is not an integer", key, val),
		}
	}

	*dst = n

	return nil
}

func envUint(key, field string, dst *uint64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return &ConfigError{
			Field: field,
			Reason: fmt.Sprintf("%s=%q is not a non-negative integer",
				key, val),
		}
	}

	*dst = n

	return nil
}
