package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// rulesDocument is the YAML layout accepted by scoring.rules_file:
//
//	version: "2026-03"
//	signals:
//	  ask_price: 25
//	  just_asking: -10
//	thresholds:
//	  s: 80
//	  a: 60
//	  b: 30
type rulesDocument struct {
	Version    string         `yaml:"version"`
	Signals    map[string]int `yaml:"signals"`
	Thresholds *Thresholds    `yaml:"thresholds"`
}

func loadRulesFile(path string) (rulesDocument, error) {
	var doc rulesDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read scoring rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse scoring rules file %s: %w", path, err)
	}
	if len(doc.Signals) == 0 {
		return doc, fmt.Errorf("scoring rules file %s defines no signals", path)
	}
	return doc, nil
}

// apply replaces the rule table wholesale; a rules file never merges with the
// inline table so one load always yields one coherent version.
func (d rulesDocument) apply(s *Scoring) {
	s.Signals = make(map[string]int, len(d.Signals))
	for key, delta := range d.Signals {
		s.Signals[key] = delta
	}
	if d.Thresholds != nil {
		s.Thresholds = *d.Thresholds
	}
	if version := strings.TrimSpace(d.Version); version != "" {
		s.Version = version
	}
}
