package source

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Options is the raw, source-specific configuration block. Each
// implementation decodes it into its own typed struct via DecodeOptions.
type Options map[string]interface{}

// Constructor builds a source from its options block.
type Constructor func(opts Options) (Source, error)

var registry = make(map[string]Constructor)

// Register installs a named constructor. Implementations call it from
// their init functions; later registrations under the same name win.
func Register(name string, fn Constructor) {
	registry[name] = fn
}

// Open builds the named source.
func Open(name string, opts Options) (Source, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (registered: %v)", name, Names())
	}
	return fn(opts)
}

// Names lists the registered source names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeOptions maps the raw options block onto a typed config struct,
// rejecting keys the struct does not declare.
func DecodeOptions(opts Options, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]interface{}(opts)); err != nil {
		return fmt.Errorf("invalid source options: %w", err)
	}
	return nil
}
