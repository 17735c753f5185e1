package filter

import (
	"slices"
	"sync"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	enc "github.com/named-data/ndnd/std/encoding"
)

// Action is the outcome of a filter lookup.
type Action int

const (
	Forward Action = iota
	Drop
)

func (a Action) String() string {
	if a == Drop {
		return "drop"
	}
	return "forward"
}

// Query classifies a packet for a filter lookup.
type Query struct {
	Kind      defn.PktKind
	Direction defn.Direction
	// Endpoint of the face the packet arrived on
	Face string
	Name enc.Name
}

// Decision is the verdict of a filter. Egress names the single egress face a
// forwarded packet must take, or is empty to let the egress policy choose.
type Decision struct {
	Action Action
	Egress string
}

// Filter holds the rule set and answers forward/drop verdicts.
type Filter interface {
	Verdict(q Query) Decision
	AddRules(rules []Rule) error
	DelRules(rules []Rule) error
	Rules() []Rule
}

type compiledRule struct {
	Rule
	name enc.Name
}

func (r *compiledRule) matches(q Query) bool {
	if r.Kind != ruleAny && r.Kind != q.Kind.String() {
		return false
	}
	if r.Direction != ruleAny && r.Direction != q.Direction.String() {
		return false
	}
	if r.Face != "" && r.Face != q.Face {
		return false
	}
	return r.name.IsPrefix(q.Name)
}

// RuleFilter matches packets against an ordered rule list. The rule with the
// longest matching prefix wins; among equally long prefixes the earliest
// added rule wins. Packets matching no rule are forwarded.
type RuleFilter struct {
	mutex sync.RWMutex
	rules []compiledRule
	store Store
}

// NewRuleFilter creates a filter holding the rules persisted in store.
func NewRuleFilter(store Store) (*RuleFilter, error) {
	f := &RuleFilter{store: store}
	saved, err := store.Load()
	if err != nil {
		return nil, err
	}
	if _, err := f.compileInto(saved); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RuleFilter) String() string {
	return "rule-filter"
}

func (f *RuleFilter) Verdict(q Query) Decision {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	var best *compiledRule
	for i := range f.rules {
		r := &f.rules[i]
		if !r.matches(q) {
			continue
		}
		if best == nil || len(r.name) > len(best.name) {
			best = r
		}
	}

	if best == nil || best.Action == ruleAccept {
		d := Decision{Action: Forward}
		if best != nil {
			d.Egress = best.Egress
		}
		return d
	}
	return Decision{Action: Drop}
}

// AddRules appends rules. The delta is applied entirely or not at all;
// rules already present are skipped.
func (f *RuleFilter) AddRules(rules []Rule) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	prev := f.rules
	added, err := f.compileInto(rules)
	if err != nil {
		f.rules = prev
		return err
	}
	if added == 0 {
		return nil
	}
	if err := f.store.Save(f.plain()); err != nil {
		f.rules = prev
		return err
	}
	core.Log.Info(f, "Added rules", "count", added, "total", len(f.rules))
	return nil
}

// compileInto validates rules and appends those not yet present.
// The caller restores f.rules on error.
func (f *RuleFilter) compileInto(rules []Rule) (int, error) {
	next := slices.Clone(f.rules)
	added := 0
	for _, rule := range rules {
		norm, err := rule.Normalize()
		if err != nil {
			return 0, err
		}
		if slices.ContainsFunc(next, func(c compiledRule) bool { return c.Rule == norm }) {
			continue
		}
		name, _ := enc.NameFromStr(norm.Prefix)
		next = append(next, compiledRule{Rule: norm, name: name})
		added++
	}
	f.rules = next
	return added, nil
}

// DelRules removes rules. Rules not present are ignored.
func (f *RuleFilter) DelRules(rules []Rule) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	del := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		norm, err := rule.Normalize()
		if err != nil {
			return err
		}
		del = append(del, norm)
	}

	prev := f.rules
	next := slices.DeleteFunc(slices.Clone(f.rules), func(c compiledRule) bool {
		return slices.Contains(del, c.Rule)
	})
	if len(next) == len(prev) {
		return nil
	}

	f.rules = next
	if err := f.store.Save(f.plain()); err != nil {
		f.rules = prev
		return err
	}
	core.Log.Info(f, "Removed rules", "count", len(prev)-len(next), "total", len(f.rules))
	return nil
}

// Rules returns a copy of the rule set in evaluation order.
func (f *RuleFilter) Rules() []Rule {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.plain()
}

func (f *RuleFilter) plain() []Rule {
	rules := make([]Rule, 0, len(f.rules))
	for _, r := range f.rules {
		rules = append(rules, r.Rule)
	}
	return rules
}
