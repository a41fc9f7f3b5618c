package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Lineage Scanner Configuration

[engine]
# Parallel partition workers (0 = number of CPUs)
workers = 0
# Let non-primary candidates seed their own continuations
explore_alternatives = false
# Cap on candidates recorded per parent, primary included (0 = unlimited)
max_alternatives = 0
# Drop instances tagged with an intruder sweep / outlaw point
reject_intruders = false
reject_outlaws = false

# Ranked links. Rank 1 is the anchor and may restrict its kind.
# relation: identical | opposite (relative to the previous rank's point)
# constraint: none | behind | beyond
# collective_window: preceding points that must also lie beyond the parent
[[chain.links]]
rank = 1
kind = "any"

[[chain.links]]
rank = 2
relation = "opposite"
constraint = "none"

[[chain.links]]
rank = 3
relation = "opposite"
constraint = "beyond"
collective_window = 0

[poi]
# Rank whose point supplies the threshold price
threshold_rank = 1

[mitigation]
# Bound ranks that must not breach the threshold
ranks = [3]

# Windows whose interior points of the later rank's kind must not breach
[[mitigation.pairs]]
from = 2
to = 3

[selection]
# Rank at which siblings compete (0 disables)
rank = 3
# extreme | non_extreme
mode = "extreme"

[swing]
# Fractal widths used by the detect command
left = 2
right = 2

[store]
# SQLite database (defaults to lineage.db in the config directory)
# path = ""

[logging]
level = "info"
console = true
file = false
`

// Template returns the commented default configuration.
func Template() string {
	return configTemplate
}

// WriteTemplate writes the default configuration into configDir and returns
// its path. An existing file is left untouched unless force is set.
func WriteTemplate(configDir string, force bool) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName+".toml")
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}

func createTemplateConfig(configDir string) error {
	path, err := WriteTemplate(configDir, false)
	if err != nil {
		return err
	}
	return fmt.Errorf("config file not found, created template at %s", path)
}
