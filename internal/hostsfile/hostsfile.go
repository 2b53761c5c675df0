// Package hostsfile parses the load generator's --hosts-file argument: a
// static YAML list of target hosts.
package hostsfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Host is one target the load generator dispatches requests to: a display
// name plus the base URL its dispatcher sends requests against.
type Host struct {
	Name    string `yaml:"host_name"`
	BaseURL string `yaml:"base_url"`
}

// file is the on-disk shape: a top-level `hosts:` list.
type file struct {
	Hosts []Host `yaml:"hosts"`
}

// Load reads and validates path, a YAML hosts file. A malformed file or an
// empty host list is a fatal configuration error at startup.
func Load(path string) ([]Host, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostsfile: reading %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("hostsfile: parsing %s: %w", path, err)
	}

	if len(f.Hosts) == 0 {
		return nil, fmt.Errorf("hostsfile: %s declares no hosts", path)
	}
	for i, h := range f.Hosts {
		if h.Name == "" {
			return nil, fmt.Errorf("hostsfile: %s: host at index %d is missing host_name", path, i)
		}
		if h.BaseURL == "" {
			return nil, fmt.Errorf("hostsfile: %s: host %q is missing base_url", path, h.Name)
		}
	}
	return f.Hosts, nil
}
