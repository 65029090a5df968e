package triage

import (
	"fmt"
	"strings"
)

// Category names of the default rule table.
const (
	CategoryAphasia   = "aphasia"
	CategoryMotor     = "motor"
	CategoryFatigue   = "fatigue"
	CategoryCognitive = "cognitive"
)

// Category is one keyword group and the line it contributes when matched.
type Category struct {
	Name           string   `yaml:"name" json:"name"`
	Keywords       []string `yaml:"keywords" json:"keywords"`
	Recommendation string   `yaml:"recommendation" json:"recommendation"`
}

// CompoundRule adds a line when every listed category matched.
type CompoundRule struct {
	Requires       []string `yaml:"requires" json:"requires"`
	Recommendation string   `yaml:"recommendation" json:"recommendation"`
}

// RuleTable is the configuration consumed by Recommend. Categories are
// evaluated independently, in order, and never suppress one another.
type RuleTable struct {
	Categories []Category     `yaml:"categories" json:"categories"`
	Compound   []CompoundRule `yaml:"compound" json:"compound"`
	Fallback   string         `yaml:"fallback" json:"fallback"`
}

// DefaultRules returns a fresh copy of the built-in table.
func DefaultRules() *RuleTable {
	return &RuleTable{
		Categories: []Category{
			{
				Name:           CategoryAphasia,
				Keywords:       []string{"speech", "talk", "language", "unable to speak", "speech impairment"},
				Recommendation: "Speech and language therapy recommended for aphasia.",
			},
			{
				Name:           CategoryMotor,
				Keywords:       []string{"paralysis", "weakness", "unable to move", "muscle weakness"},
				Recommendation: "Physical therapy recommended for motor weakness or paralysis.",
			},
			{
				Name:           CategoryFatigue,
				Keywords:       []string{"fatigue", "tired", "low energy"},
				Recommendation: "Graded activity and energy conservation plan recommended for post-stroke fatigue.",
			},
			{
				Name:           CategoryCognitive,
				Keywords:       []string{"memory loss", "difficulty concentrating", "cognitive issues", "confusion"},
				Recommendation: "Cognitive rehabilitation exercises recommended for memory and attention deficits.",
			},
		},
		Compound: []CompoundRule{
			{
				Requires:       []string{CategoryAphasia, CategoryMotor},
				Recommendation: "Combined speech and physical therapy program recommended.",
			},
		},
		Fallback: "No specific therapy found.",
	}
}

// Clone returns a deep copy of the table.
func (t *RuleTable) Clone() *RuleTable {
	out := &RuleTable{
		Categories: make([]Category, len(t.Categories)),
		Compound:   make([]CompoundRule, len(t.Compound)),
		Fallback:   t.Fallback,
	}
	for i, c := range t.Categories {
		c.Keywords = append([]string(nil), c.Keywords...)
		out.Categories[i] = c
	}
	for i, r := range t.Compound {
		r.Requires = append([]string(nil), r.Requires...)
		out.Compound[i] = r
	}
	return out
}

// Validate checks the table is usable and normalises keywords to lower case.
func (t *RuleTable) Validate() error {
	if strings.TrimSpace(t.Fallback) == "" {
		return fmt.Errorf("%w: fallback line is empty", ErrInvalidRules)
	}
	seen := make(map[string]bool, len(t.Categories))
	for i := range t.Categories {
		c := &t.Categories[i]
		if c.Name == "" {
			return fmt.Errorf("%w: category %d has no name", ErrInvalidRules, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidRules, c.Name)
		}
		seen[c.Name] = true
		if c.Recommendation == "" {
			return fmt.Errorf("%w: category %q has no recommendation", ErrInvalidRules, c.Name)
		}
		keywords := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return fmt.Errorf("%w: category %q has no keywords", ErrInvalidRules, c.Name)
		}
		c.Keywords = keywords
	}
	for i, r := range t.Compound {
		if len(r.Requires) == 0 || r.Recommendation == "" {
			return fmt.Errorf("%w: compound rule %d is incomplete", ErrInvalidRules, i)
		}
		for _, name := range r.Requires {
			if !seen[name] {
				return fmt.Errorf("%w: compound rule %d requires unknown category %q", ErrInvalidRules, i, name)
			}
		}
	}
	return nil
}

// Recommend maps a symptom report to its recommendation lines. It is total:
// an empty report yields exactly the fallback line.
func (t *RuleTable) Recommend(report SymptomReport) RecommendationSet {
	set := RecommendationSet{Categories: []string{}, Lines: []string{}}
	matched := make(map[string]bool, len(t.Categories))

	for _, c := range t.Categories {
		for _, k := range c.Keywords {
			if report.contains(strings.ToLower(k)) {
				matched[c.Name] = true
				set.Categories = append(set.Categories, c.Name)
				set.Lines = append(set.Lines, c.Recommendation)
				break
			}
		}
	}

	for _, r := range t.Compound {
		all := true
		for _, name := range r.Requires {
			if !matched[name] {
				all = false
				break
			}
		}
		if all {
			set.Lines = append(set.Lines, r.Recommendation)
		}
	}

	if len(set.Categories) == 0 {
		set.Lines = append(set.Lines, t.Fallback)
	}
	return set
}
