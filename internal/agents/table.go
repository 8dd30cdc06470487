package agents

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"site-assistant/internal/domain"
)

//go:embed profiles.yaml
var defaultProfiles []byte

type fileModel struct {
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type fileClassifier struct {
	fileModel    `yaml:",inline"`
	Instructions string `yaml:"instructions"`
}

type fileProfile struct {
	fileModel    `yaml:",inline"`
	Category     string   `yaml:"category"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Instructions string   `yaml:"instructions"`
	Links        []string `yaml:"links"`
}

type file struct {
	Classifier fileClassifier `yaml:"classifier"`
	Agents     []fileProfile  `yaml:"agents"`
	Fallback   *fileProfile   `yaml:"fallback"`
}

// Defaults supplies model settings that a profiles document leaves unset.
type Defaults struct {
	Classifier domain.ModelSettings
	Agent      domain.ModelSettings
}

// Table is the dispatch table from Category to AgentProfile. It is immutable
// after Load and safe for concurrent use.
type Table struct {
	classifier domain.ClassifierProfile
	profiles   map[domain.Category]domain.AgentProfile
	fallback   domain.AgentProfile
}

// Default loads the profiles compiled into the binary.
func Default(defaults Defaults) (*Table, error) {
	return Load(defaultProfiles, defaults)
}

// LoadFile loads profiles from path, falling back to the embedded profiles
// when path is empty.
func LoadFile(path string, defaults Defaults) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(defaults)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agents: read profiles: %w", err)
	}
	return Load(data, defaults)
}

// Load parses a profiles document. Model settings left unset in the document
// are taken from defaults. Every classifier category must have exactly one
// profile and a fallback profile is required.
func Load(data []byte, defaults Defaults) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("agents: decode profiles: %w", err)
	}

	classifierInstructions := strings.TrimSpace(f.Classifier.Instructions)
	if classifierInstructions == "" {
		return nil, errors.New("agents: classifier instructions must not be empty")
	}

	t := &Table{
		classifier: domain.ClassifierProfile{
			Instructions: classifierInstructions,
			Settings:     f.Classifier.settings(defaults.Classifier),
		},
		profiles: make(map[domain.Category]domain.AgentProfile, len(f.Agents)),
	}

	for i, p := range f.Agents {
		category, ok := domain.ParseCategory(p.Category)
		if !ok {
			return nil, fmt.Errorf("agents: profile %d: unknown category %q", i, p.Category)
		}
		if _, dup := t.profiles[category]; dup {
			return nil, fmt.Errorf("agents: duplicate profile for %s", category)
		}
		profile, err := p.toProfile(category, defaults.Agent)
		if err != nil {
			return nil, err
		}
		t.profiles[category] = profile
	}

	for _, c := range domain.Categories() {
		if _, ok := t.profiles[c]; !ok {
			return nil, fmt.Errorf("agents: missing profile for %s", c)
		}
	}

	if f.Fallback == nil {
		return nil, errors.New("agents: fallback profile is required")
	}
	fallback, err := f.Fallback.toProfile(domain.FallbackCategory, defaults.Agent)
	if err != nil {
		return nil, err
	}
	t.fallback = fallback

	return t, nil
}

// Lookup returns a copy of the profile for c. Unknown categories resolve to
// the fallback profile and false.
func (t *Table) Lookup(c domain.Category) (domain.AgentProfile, bool) {
	p, ok := t.profiles[c]
	if !ok {
		return cloneProfile(t.fallback), false
	}
	return cloneProfile(p), true
}

func (t *Table) Classifier() domain.ClassifierProfile {
	return t.classifier
}

func (t *Table) Fallback() domain.AgentProfile {
	return cloneProfile(t.fallback)
}

// Categories lists the categories the table dispatches on.
func (t *Table) Categories() []domain.Category {
	return domain.Categories()
}

// Profiles returns copies of the category profiles in Categories() order.
func (t *Table) Profiles() []domain.AgentProfile {
	out := make([]domain.AgentProfile, 0, len(t.profiles))
	for _, c := range domain.Categories() {
		out = append(out, cloneProfile(t.profiles[c]))
	}
	return out
}

func cloneProfile(p domain.AgentProfile) domain.AgentProfile {
	p.Links = slices.Clone(p.Links)
	return p
}

func (m fileModel) settings(defaults domain.ModelSettings) domain.ModelSettings {
	s := defaults
	if model := strings.TrimSpace(m.Model); model != "" {
		s.Model = model
	}
	if m.Temperature != nil {
		s.Temperature = *m.Temperature
	}
	if m.MaxTokens > 0 {
		s.MaxTokens = m.MaxTokens
	}
	return s
}

func (p fileProfile) toProfile(category domain.Category, defaults domain.ModelSettings) (domain.AgentProfile, error) {
	instructions := strings.TrimSpace(p.Instructions)
	if instructions == "" {
		return domain.AgentProfile{}, fmt.Errorf("agents: %s: instructions must not be empty", category)
	}
	links := make([]string, 0, len(p.Links))
	for _, l := range p.Links {
		l = strings.TrimSpace(l)
		u, err := url.Parse(l)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.AgentProfile{}, fmt.Errorf("agents: %s: invalid link %q", category, l)
		}
		links = append(links, l)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = string(category)
	}
	return domain.AgentProfile{
		Category:     category,
		Name:         name,
		Description:  strings.TrimSpace(p.Description),
		Instructions: instructions,
		Links:        links,
		Settings:     p.settings(defaults),
	}, nil
}
