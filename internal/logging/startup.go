package logging

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the run identity, the external endpoints a run will
// touch, feature flags and non-sensitive settings, then emits them as one
// structured event. Credentials are never registered; SSM parameters are
// recorded by path only.
type StartupLogger struct {
	name      string
	runTag    string
	version   string
	initStart time.Time

	endpoints map[string]string
	ssmParams map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the named entrypoint
// (e.g. "docingest run", "stage-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		initStart: time.Now(),
		endpoints: make(map[string]string),
		ssmParams: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// RunTag sets the tag that scopes this run's rows in the store.
func (s *StartupLogger) RunTag(tag string) *StartupLogger {
	s.runTag = tag
	return s
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Endpoint registers an external resource, e.g. the source bucket or the
// ingestion service URL.
func (s *StartupLogger) Endpoint(label, value string) *StartupLogger {
	if value != "" {
		s.endpoints[label] = value
	}
	return s
}

// SSMParam registers an SSM parameter path. Only the path is logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	if path != "" {
		s.ssmParams[label] = path
	}
	return s
}

// Feature registers a boolean feature flag (e.g. "sourceDownload", "verify").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// Log emits a single structured INFO event with everything collected.
func (s *StartupLogger) Log() {
	evt := log.Info()

	identity := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH)
	if s.runTag != "" {
		identity = identity.Str("runTag", s.runTag)
	}
	if s.version != "" {
		identity = identity.Str("version", s.version)
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		identity = identity.Str("functionName", fn).Str("region", os.Getenv("AWS_REGION"))
	}
	evt = evt.Dict("pipeline", identity)

	if len(s.endpoints) > 0 {
		evt = evt.Dict("endpoints", dictFromMap(s.endpoints))
	}
	if len(s.ssmParams) > 0 {
		evt = evt.Dict("ssmParams", dictFromMap(s.ssmParams))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	evt.Dur("initDuration", time.Since(s.initStart)).Msg("Pipeline startup complete")
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d = d.Str(k, m[k])
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
