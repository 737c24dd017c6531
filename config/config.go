// Package config holds the options of an analysis run, as read from a YAML
// file and overridden on the command line.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/internal/maps"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/plugin/invokedynamic"
	"github.com/BarrensZeppelin/pta/plugin/native"
)

var ErrInvalidOptions = errors.New("invalid options")

// Output formats.
const (
	Text = "text"
	JSON = "json"
	DOT  = "dot"
	SVG  = "svg"
	PNG  = "png"
)

var outputFormats = []string{Text, JSON, DOT, SVG, PNG}

var pluginFactories = map[string]func() pta.Plugin{
	"native":        func() pta.Plugin { return native.New() },
	"invokedynamic": func() pta.Plugin { return invokedynamic.New() },
}

type Options struct {
	// Context selector, e.g. "ci", "2-obj" or "1-call+1h".
	Selector string `yaml:"selector"`
	// Selectors run by the compare command.
	Compare []string `yaml:"compare,omitempty"`
	// Entry method signatures. Defaults to the entries of the program.
	Entries []string `yaml:"entries,omitempty"`
	Plugins []string `yaml:"plugins,omitempty"`
	Output  string   `yaml:"output"`
	// Do not load the runtime library classes.
	NoPrelude bool `yaml:"no-prelude,omitempty"`
	Verbose   bool `yaml:"verbose,omitempty"`
}

// Default returns the options used when no configuration file is given.
func Default() Options {
	return Options{
		Selector: "ci",
		Compare:  []string{"ci", "1-call", "1-obj", "1-type", "2-obj"},
		Plugins:  []string{"native", "invokedynamic"},
		Output:   Text,
	}
}

// Parse reads options from YAML. Omitted keys keep their default values;
// unknown keys are rejected.
func Parse(r io.Reader) (Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return opts, opts.Validate()
}

// Load reads options from a YAML file.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	opts, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

func (o Options) Validate() error {
	var errs []error
	for _, sel := range append([]string{o.Selector}, o.Compare...) {
		if _, err := cs.ParseSelector(sel); err != nil {
			errs = append(errs, err)
		}
	}

	if !slices.Contains(outputFormats, o.Output) {
		errs = append(errs, fmt.Errorf("unknown output format %q, expected one of %s",
			o.Output, strings.Join(outputFormats, ", ")))
	}

	if dups := len(o.Plugins) - len(maps.FromKeys(o.Plugins)); dups > 0 {
		errs = append(errs, fmt.Errorf("plugins listed more than once: %v", o.Plugins))
	}
	for _, name := range o.Plugins {
		if _, found := pluginFactories[name]; !found {
			errs = append(errs, fmt.Errorf("unknown plugin %q, expected one of %s",
				name, strings.Join(PluginNames(), ", ")))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// PluginNames returns the names of the available plugins in sorted order.
func PluginNames() []string {
	return maps.SortedKeys(pluginFactories)
}

// ParseSelectors parses the main selector and the compare selectors.
func (o Options) ParseSelectors() (cs.Selector, []cs.Selector, error) {
	sel, err := cs.ParseSelector(o.Selector)
	if err != nil {
		return sel, nil, err
	}

	compare := make([]cs.Selector, len(o.Compare))
	for i, s := range o.Compare {
		if compare[i], err = cs.ParseSelector(s); err != nil {
			return sel, nil, err
		}
	}
	return sel, compare, nil
}

// NewPlugins instantiates fresh plugins. Plugins keep per-run state, so
// every analysis run needs its own instances.
func (o Options) NewPlugins() []pta.Plugin {
	var plugins []pta.Plugin
	for _, name := range o.Plugins {
		if f, found := pluginFactories[name]; found {
			plugins = append(plugins, f())
		}
	}
	return plugins
}

// ResolveEntries looks up the entry methods in prog. It returns nil if no
// entries are configured.
func (o Options) ResolveEntries(prog *ir.Program) ([]*ir.Method, error) {
	var (
		entries []*ir.Method
		errs    []error
	)
	for _, sig := range o.Entries {
		if m := prog.Method(sig); m != nil {
			entries = append(entries, m)
		} else {
			errs = append(errs, fmt.Errorf("%w: entry %s", ir.ErrUnresolvedSignature, sig))
		}
	}
	return entries, errors.Join(errs...)
}
