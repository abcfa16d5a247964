package migrate

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the generator config of spec §4.7, grounded on the teacher's
// database.GeneratorConfig (database/database.go): target/skip scheme
// names and the destructive-operation gate. DumpConcurrency is carried
// unused by this engine's introspection (it always walks schemes
// sequentially — there is no dump step to parallelise), kept only so a
// config file shared with the teacher's own tooling still parses.
type Config struct {
	TargetSchemes   []string `yaml:"target_schemes"`
	SkipSchemes     []string `yaml:"skip_schemes"`
	EnableDrop      bool     `yaml:"enable_drop"`
	DumpConcurrency int      `yaml:"dump_concurrency"`
}

// ParseConfig reads and parses a YAML config file, grounded on the
// teacher's database.ParseGeneratorConfig. A missing path returns the
// zero Config (all schemes targeted, drops disabled), matching the
// teacher's "empty config file is a no-op" behaviour.
func ParseConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return ParseConfigString(string(buf))
}

func ParseConfigString(doc string) (Config, error) {
	var cfg Config
	if doc == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// filterSchemeNames applies TargetSchemes/SkipSchemes to a candidate
// scheme name list, matching the teacher's "target list wins, skip list
// subtracts" GeneratorConfig semantics.
func (c Config) filterSchemeNames(names []string) []string {
	if len(c.TargetSchemes) > 0 {
		allowed := toSet(c.TargetSchemes)
		var out []string
		for _, n := range names {
			if allowed[n] {
				out = append(out, n)
			}
		}
		names = out
	}
	if len(c.SkipSchemes) > 0 {
		skip := toSet(c.SkipSchemes)
		var out []string
		for _, n := range names {
			if !skip[n] {
				out = append(out, n)
			}
		}
		names = out
	}
	return names
}
