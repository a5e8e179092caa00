package agents

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed agents.yaml
var defaultRoster []byte

// Roster is the ordered, validated set of agents.
type Roster struct {
	order []string
	specs map[string]Spec
}

type rosterFile struct {
	Agents []Spec `yaml:"agents"`
}

// KnownTool reports whether a tool name can be bound to an agent.
type KnownTool func(name string) bool

// LoadRoster reads path, or the embedded default roster when path is empty.
func LoadRoster(path string, known KnownTool) (*Roster, error) {
	data := defaultRoster
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read agents file: %w", err)
		}
		data = raw
	}
	return ParseRoster(data, known)
}

// ParseRoster decodes and validates a YAML roster.
func ParseRoster(data []byte, known KnownTool) (*Roster, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return NewRoster(known, file.Agents...)
}

// NewRoster validates specs and indexes them by key. Keys and roles must be unique.
func NewRoster(known KnownTool, specs ...Spec) (*Roster, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("roster has no agents")
	}
	r := &Roster{specs: make(map[string]Spec, len(specs))}
	roles := make(map[string]string, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.specs[s.Key]; dup {
			return nil, fmt.Errorf("duplicate agent key %q", s.Key)
		}
		if other, dup := roles[strings.ToLower(s.Role)]; dup {
			return nil, fmt.Errorf("agents %q and %q share role %q", other, s.Key, s.Role)
		}
		for _, tool := range s.Tools {
			if known != nil && !known(tool) {
				return nil, fmt.Errorf("agent %q: unknown tool %q", s.Key, tool)
			}
		}
		roles[strings.ToLower(s.Role)] = s.Key
		s.Tools = append([]string(nil), s.Tools...)
		r.specs[s.Key] = s
		r.order = append(r.order, s.Key)
	}
	return r, nil
}

// Get returns the agent with the given key.
func (r *Roster) Get(key string) (Spec, bool) {
	s, ok := r.specs[key]
	if !ok {
		return Spec{}, false
	}
	return s.withTools(), true
}

// All returns agents in declaration order.
func (r *Roster) All() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.specs[key].withTools())
	}
	return out
}

// Coworkers returns every agent except the one with the given key.
func (r *Roster) Coworkers(key string) []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		if k != key {
			out = append(out, r.specs[k].withTools())
		}
	}
	return out
}

func (s Spec) withTools() Spec {
	s.Tools = append([]string(nil), s.Tools...)
	return s
}
