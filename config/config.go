// Package config loads the configuration of the abstract interpreter.
//
// Configuration files named absint.conf are looked up in a directory and
// all of its parents. Files closer to the directory take precedence; keys
// they don't set are inherited from farther files and, ultimately, from the
// defaults. The list of checks may refer to the inherited list with the
// special element "inherit".
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/domain"
)

type config struct {
	cfg Config
	// defined reports whether a key was set in the file cfg was decoded
	// from.
	defined func(key ...string) bool
}

func mergeLists(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, el := range b {
		if el == "inherit" {
			out = append(out, a...)
		} else {
			out = append(out, el)
		}
	}
	return out
}

func normalizeList(list []string) []string {
	if len(list) > 1 {
		sort.Strings(list)
		nlist := make([]string, 0, len(list))
		nlist = append(nlist, list[0])
		for i, el := range list[1:] {
			if el != list[i] {
				nlist = append(nlist, el)
			}
		}
		list = nlist
	}

	for _, el := range list {
		if el == "inherit" {
			// The defaults never use "inherit", so it is always resolved
			// by merging.
			panic(`unresolved "inherit"`)
		}
		if el == "all" {
			return []string{"all"}
		}
	}

	return list
}

func (cfg config) Merge(ocfg config) config {
	if ocfg.defined("checks") {
		cfg.cfg.Checks = mergeLists(cfg.cfg.Checks, ocfg.cfg.Checks)
	}
	e, oe := &cfg.cfg.Engine, ocfg.cfg.Engine
	if ocfg.defined("engine", "disjunction_threshold") {
		e.DisjunctionThreshold = oe.DisjunctionThreshold
	}
	if ocfg.defined("engine", "stop_on_error") {
		e.StopOnError = oe.StopOnError
	}
	if ocfg.defined("engine", "mode") {
		e.Mode = oe.Mode
	}
	if ocfg.defined("engine", "max_depth") {
		e.MaxDepth = oe.MaxDepth
	}
	if ocfg.defined("engine", "widening_threshold") {
		e.WideningThreshold = oe.WideningThreshold
	}
	r, or := &e.Rounding, oe.Rounding
	if ocfg.defined("engine", "rounding", "mode") {
		r.Mode = or.Mode
	}
	if ocfg.defined("engine", "rounding", "avoid_infinity") {
		r.AvoidInfinity = or.AvoidInfinity
	}
	if ocfg.defined("engine", "rounding", "round_to_even") {
		r.RoundToEven = or.RoundToEven
	}
	if ocfg.defined("engine", "rounding", "refuse_minus_zero") {
		r.RefuseMinusZero = or.RefuseMinusZero
	}
	if ocfg.defined("engine", "rounding", "split_fused") {
		r.SplitFused = or.SplitFused
	}
	return cfg
}

type Config struct {
	// Checks lists the enabled checks of the analyzer, or "all".
	Checks []string     `toml:"checks" yaml:"checks"`
	Engine EngineConfig `toml:"engine" yaml:"engine"`
}

type EngineConfig struct {
	DisjunctionThreshold int            `toml:"disjunction_threshold" yaml:"disjunction_threshold"`
	StopOnError          bool           `toml:"stop_on_error" yaml:"stop_on_error"`
	Mode                 string         `toml:"mode" yaml:"mode"`
	MaxDepth             int            `toml:"max_depth" yaml:"max_depth"`
	WideningThreshold    int            `toml:"widening_threshold" yaml:"widening_threshold"`
	Rounding             RoundingConfig `toml:"rounding" yaml:"rounding"`
}

type RoundingConfig struct {
	Mode            string `toml:"mode" yaml:"mode"`
	AvoidInfinity   bool   `toml:"avoid_infinity" yaml:"avoid_infinity"`
	RoundToEven     bool   `toml:"round_to_even" yaml:"round_to_even"`
	RefuseMinusZero bool   `toml:"refuse_minus_zero" yaml:"refuse_minus_zero"`
	SplitFused      bool   `toml:"split_fused" yaml:"split_fused"`
}

var defaultConfig = Config{
	Checks: []string{"all"},
	Engine: EngineConfig{
		DisjunctionThreshold: 16,
		Mode:                 "exact",
		MaxDepth:             256,
		WideningThreshold:    3,
		Rounding: RoundingConfig{
			Mode:        "nearest",
			RoundToEven: true,
		},
	},
}

// Default returns the configuration used when no file sets anything.
func Default() Config {
	c := defaultConfig
	c.Checks = append([]string(nil), defaultConfig.Checks...)
	return c
}

// Policy converts the engine section into a domain policy.
func (c Config) Policy() (domain.Policy, error) {
	e := c.Engine
	if e.DisjunctionThreshold < 1 {
		return domain.Policy{}, fmt.Errorf("disjunction_threshold must be positive, is %d", e.DisjunctionThreshold)
	}
	if e.MaxDepth < 1 {
		return domain.Policy{}, fmt.Errorf("max_depth must be positive, is %d", e.MaxDepth)
	}
	if e.WideningThreshold < 0 {
		return domain.Policy{}, fmt.Errorf("widening_threshold must not be negative, is %d", e.WideningThreshold)
	}
	mode, err := domain.ParseCreationMode(e.Mode)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("engine.mode: %w", err)
	}
	rmode, err := arith.ParseRoundingMode(e.Rounding.Mode)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("engine.rounding.mode: %w", err)
	}
	return domain.Policy{
		DisjunctionThreshold: e.DisjunctionThreshold,
		StopOnError:          e.StopOnError,
		Rounding: arith.RoundingParams{
			Mode:            rmode,
			AvoidInfinity:   e.Rounding.AvoidInfinity,
			RoundToEven:     e.Rounding.RoundToEven,
			RefuseMinusZero: e.Rounding.RefuseMinusZero,
			SplitFused:      e.Rounding.SplitFused,
		},
		Mode:              mode,
		MaxDepth:          e.MaxDepth,
		WideningThreshold: e.WideningThreshold,
	}, nil
}

// Enabled reports whether the check named name is enabled.
func (c Config) Enabled(name string) bool {
	for _, el := range c.Checks {
		if el == "all" || el == name {
			return true
		}
	}
	return false
}

const configName = "absint.conf"

func decodeTOML(path string) (config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config{cfg: cfg, defined: meta.IsDefined}, nil
}

// decodeYAML decodes a YAML file. Keys are looked up in the document tree,
// since yaml.v3 has no equivalent of toml.MetaData.
func decodeYAML(path string) (config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	var cfg Config
	if root.Kind != 0 {
		if err := root.Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	defined := func(key ...string) bool {
		n := &root
		if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
			n = n.Content[0]
		}
		for _, k := range key {
			if n.Kind != yaml.MappingNode {
				return false
			}
			var next *yaml.Node
			for i := 0; i+1 < len(n.Content); i += 2 {
				if n.Content[i].Value == k {
					next = n.Content[i+1]
					break
				}
			}
			if next == nil {
				return false
			}
			n = next
		}
		return true
	}
	return config{cfg: cfg, defined: defined}, nil
}

func decode(path string) (config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(path)
	default:
		return decodeTOML(path)
	}
}

func parseConfigs(dir string) ([]config, error) {
	var out []config

	for dir != "" {
		path := filepath.Join(dir, configName)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			ndir := filepath.Dir(dir)
			if ndir == dir {
				break
			}
			dir = ndir
			continue
		}
		if err != nil {
			return nil, err
		}
		cfg, err := decodeTOML(path)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
		ndir := filepath.Dir(dir)
		if ndir == dir {
			break
		}
		dir = ndir
	}
	out = append(out, config{
		cfg: Default(),
		// the base config is never merged into anything
		defined: func(...string) bool { return false },
	})
	for i := 0; i < len(out)/2; i++ {
		out[i], out[len(out)-1-i] = out[len(out)-1-i], out[i]
	}
	return out, nil
}

func mergeConfigs(confs []config) Config {
	if len(confs) == 0 {
		// There is always at least the default config.
		panic("trying to merge zero configs")
	}
	conf := confs[0]
	for _, oconf := range confs[1:] {
		conf = conf.Merge(oconf)
	}
	return conf.cfg
}

func finish(conf Config) Config {
	conf.Checks = normalizeList(conf.Checks)
	return conf
}

// Load returns the configuration in effect for dir.
func Load(dir string) (Config, error) {
	confs, err := parseConfigs(dir)
	if err != nil {
		return Config{}, fmt.Errorf("loading configuration for %s: %w", dir, err)
	}
	return finish(mergeConfigs(confs)), nil
}

// LoadFile merges a single file, TOML or YAML depending on its extension,
// over the defaults.
func LoadFile(path string) (Config, error) {
	cfg, err := decode(path)
	if err != nil {
		return Config{}, fmt.Errorf("loading configuration: %w", err)
	}
	base := config{cfg: Default(), defined: func(...string) bool { return false }}
	return finish(mergeConfigs([]config{base, cfg})), nil
}
