package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kgarg2468/Skintel/internal/types"
)

const (
	// RelevantConfidence is the minimum confidence for condition-specific advice
	RelevantConfidence = 40.0
	// ActionConfidence is the minimum confidence for action items
	ActionConfidence = 60.0

	lifestyleLimit = 2
	dietLimit      = 3
	generalLimit   = 2
)

// Finding is the scorer output the engine needs for one condition
type Finding struct {
	Condition  types.ConditionID
	Confidence float64
	RiskLevel  types.RiskLevel
}

// Bundle holds deduplicated recommendations plus ordered action items
type Bundle struct {
	Lifestyle   []string `json:"lifestyle"`
	Diet        []string `json:"diet"`
	Medical     []string `json:"medical"`
	ActionItems []string `json:"action_items"`
}

// Engine selects recommendations from static tables. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	templates map[types.ConditionID]Template
	general   Template
	rules     map[types.ConditionID]actionRule
}

func NewEngine() *Engine {
	return &Engine{
		templates: conditionTemplates,
		general:   generalTemplate,
		rules:     actionRules,
	}
}

// Generate builds the recommendation bundle for a set of findings
func (e *Engine) Generate(findings []Finding) Bundle {
	lifestyle := newOrderedSet()
	diet := newOrderedSet()
	medical := newOrderedSet()

	var actionable []Finding
	for _, f := range findings {
		if f.Confidence < RelevantConfidence {
			continue
		}
		if tmpl, ok := e.templates[f.Condition]; ok {
			lifestyle.add(prefix(tmpl.Lifestyle, lifestyleLimit)...)
			diet.add(prefix(tmpl.Diet, dietLimit)...)
			medical.add(tmpl.Medical...)
		}
		if f.Confidence >= ActionConfidence {
			actionable = append(actionable, f)
		}
	}

	lifestyle.add(prefix(e.general.Lifestyle, generalLimit)...)
	diet.add(prefix(e.general.Diet, generalLimit)...)
	medical.add(prefix(e.general.Medical, generalLimit)...)

	return Bundle{
		Lifestyle:   lifestyle.items,
		Diet:        diet.items,
		Medical:     medical.items,
		ActionItems: e.actionItems(actionable),
	}
}

func (e *Engine) actionItems(actionable []Finding) []string {
	items := []string{}
	if len(actionable) == 0 {
		return items
	}

	sort.SliceStable(actionable, func(i, j int) bool {
		return actionable[i].Confidence > actionable[j].Confidence
	})
	for _, f := range actionable {
		rule, ok := e.rules[f.Condition]
		if !ok {
			continue
		}
		if rule.requireHigh && f.RiskLevel != types.RiskHigh {
			continue
		}
		if f.Confidence < rule.minConfidence {
			continue
		}
		items = append(items, renderAction(rule.format, f.Confidence))
	}
	return append(items, closingActionItems...)
}

func renderAction(format string, confidence float64) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return fmt.Sprintf(format, confidence)
}

func prefix(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(items ...string) {
	for _, item := range items {
		if _, ok := s.seen[item]; ok {
			continue
		}
		s.seen[item] = struct{}{}
		s.items = append(s.items, item)
	}
}
