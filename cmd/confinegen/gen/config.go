package gen

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "confinegen.toml"

// DefaultRuntimeImport is the package generated code calls into.
const DefaultRuntimeImport = "github.com/kolkov/confinement/confine"

// Config controls generation.
//
// Example confinegen.toml:
//
//	suffix = "_confine.go"
//	skip_prefixes = ["Primitive", "SetPrimitive"]
//	skip = ["Entity.Debug", "String"]
type Config struct {
	// Suffix replaces ".go" in the name of each generated file.
	Suffix string `toml:"suffix"`

	// SkipPrefixes lists method name prefixes that are never intercepted.
	// Skipped methods still appear in the generated interface.
	SkipPrefixes []string `toml:"skip_prefixes"`

	// Skip lists methods that are never intercepted, either as "Method"
	// (every entity) or "Type.Method".
	Skip []string `toml:"skip"`

	// RuntimeImport is the import path of the checker runtime.
	RuntimeImport string `toml:"runtime_import"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Suffix:        "_confine.go",
		SkipPrefixes:  []string{"Primitive", "SetPrimitive"},
		RuntimeImport: DefaultRuntimeImport,
	}
}

// LoadConfig reads a TOML config file over the defaults. A missing
// DefaultConfigFile is not an error; any other missing path is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "confinegen: read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.WithHint(
			errors.Newf("confinegen: %s: unknown key %q", path, undecoded[0].String()),
			"valid keys are suffix, skip_prefixes, skip and runtime_import",
		)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "confinegen: %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Suffix == ".go" || !strings.HasSuffix(c.Suffix, ".go") {
		return errors.WithHint(
			errors.Newf("invalid suffix %q", c.Suffix),
			`the suffix must end in ".go" and differ from it, e.g. "_confine.go"`,
		)
	}
	if c.RuntimeImport == "" {
		return errors.New("runtime_import must not be empty")
	}
	return nil
}

// skipped reports whether method name of entity typ is never intercepted.
func (c Config) skipped(typ, name string) bool {
	if name == "HomeContext" {
		return true
	}
	for _, p := range c.SkipPrefixes {
		if p != "" && len(name) > len(p) && strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, s := range c.Skip {
		if s == name || s == typ+"."+name {
			return true
		}
	}
	return false
}
