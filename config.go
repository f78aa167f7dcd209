package tracker

import (
	"bufio"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the go-probe node's convention of keeping TOML keys
// identical to the Go struct field names, rather than lower-casing them.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// Config overrides the compile-time constants spec.md §3/§9 otherwise
// fixes: the hashtable's bucket-array capacity, the call-stack depth
// bound, and the default output path. Zero values mean "use the spec
// default" — see DefaultConfig.
type Config struct {
	HashtableSize  int    `toml:",omitempty"`
	CallStackDepth int    `toml:",omitempty"`
	Output         string `toml:",omitempty"`
}

// DefaultConfig is the configuration used when no -c/--config file is
// given: the hashtable size and call-stack depth match spec.md's
// compile-time defaults, and Output is empty (meaning stdout).
var DefaultConfig = Config{
	HashtableSize:  DefaultStoreSize,
	CallStackDepth: CallStackDepth,
}

// LoadConfig reads an optional TOML configuration file, starting from
// DefaultConfig and overriding whichever fields the file sets.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig

	f, err := os.Open(path)
	if err != nil {
		return Config{}, newError(NotFound, "cannot open config file %s: %v", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		return Config{}, newError(InvalidArgument, "malformed config file %s: %v", path, err)
	}

	if cfg.HashtableSize == 0 {
		cfg.HashtableSize = DefaultConfig.HashtableSize
	}
	if cfg.CallStackDepth == 0 {
		cfg.CallStackDepth = DefaultConfig.CallStackDepth
	}

	return cfg, nil
}
