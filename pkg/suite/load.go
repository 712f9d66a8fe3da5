package suite

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
)

type suiteFile struct {
	Name   string      `yaml:"name"`
	Probes []probeSpec `yaml:"probes"`
}

type probeSpec struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Message  string   `yaml:"message"`
	Keywords []string `yaml:"keywords"`
	MatchAll bool     `yaml:"match_all"`
	Channel  string   `yaml:"channel"`
	Timeout  string   `yaml:"timeout"`
}

// Load reads a suite definition from a YAML file.
func Load(path string) (Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return Suite{}, fmt.Errorf("failed to open suite file: %w", err)
	}
	defer f.Close()

	var file suiteFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return Suite{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return file.toSuite()
}

func (f suiteFile) toSuite() (Suite, error) {
	if f.Name == "" {
		return Suite{}, fmt.Errorf("suite name is required")
	}

	if len(f.Probes) == 0 {
		return Suite{}, fmt.Errorf("suite %s has no probes", f.Name)
	}

	s := Suite{Name: f.Name}

	for i, spec := range f.Probes {
		p, err := spec.toProbe()
		if err != nil {
			return Suite{}, fmt.Errorf("probe %d: %w", i, err)
		}

		s.Probes = append(s.Probes, p)
	}

	return s, nil
}

func (spec probeSpec) toProbe() (probe.Probe, error) {
	if spec.Name == "" {
		return probe.Probe{}, fmt.Errorf("name is required")
	}

	p := probe.Probe{
		Name:     spec.Name,
		Category: spec.Category,
		Message:  spec.Message,
		Keywords: spec.Keywords,
		MatchAll: spec.MatchAll,
	}

	// An empty channel means the probe runs on whatever channel the
	// runner was started with.
	if spec.Channel != "" {
		kind := channel.Kind(spec.Channel)
		if !channel.IsValidKind(kind) {
			return probe.Probe{}, fmt.Errorf("%s: unknown channel %q", spec.Name, spec.Channel)
		}

		p.Channel = kind
	}

	if spec.Timeout != "" {
		timeout, err := time.ParseDuration(spec.Timeout)
		if err != nil {
			return probe.Probe{}, fmt.Errorf("%s: invalid timeout: %w", spec.Name, err)
		}

		if timeout <= 0 {
			return probe.Probe{}, fmt.Errorf("%s: timeout must be positive, got %s", spec.Name, timeout)
		}

		p.Timeout = timeout
	}

	return p, nil
}
