package filter

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/named-data/ndnfw/fw/defn"
	enc "github.com/named-data/ndnd/std/encoding"
)

const (
	ruleAny    = "any"
	ruleDrop   = "drop"
	ruleAccept = "accept"
)

// Rule is one entry of the rule set, as carried by command documents,
// rule files and the rule store.
type Rule struct {
	// Packet kind: interest, data or any
	Kind string `json:"kind,omitempty"`
	// Direction: ingress, egress or any
	Direction string `json:"direction,omitempty"`
	// Name prefix the rule applies to
	Prefix string `json:"prefix"`
	// Endpoint of the incoming face (empty matches all)
	Face string `json:"face,omitempty"`
	// drop or accept
	Action string `json:"action"`
	// Endpoint of the egress face accepted packets are sent to (empty uses the policy)
	Egress string `json:"egress,omitempty"`
}

func (r Rule) String() string {
	s := fmt.Sprintf("%s %s %s %s", r.Action, r.Kind, r.Direction, r.Prefix)
	if r.Face != "" {
		s += " from " + r.Face
	}
	if r.Egress != "" {
		s += " to " + r.Egress
	}
	return s
}

// Normalize validates the rule and returns its canonical form. Missing kind
// and direction default to any; a missing action defaults to drop.
func (r Rule) Normalize() (Rule, error) {
	r.Kind = strings.ToLower(r.Kind)
	r.Direction = strings.ToLower(r.Direction)
	r.Action = strings.ToLower(r.Action)

	switch r.Kind {
	case "":
		r.Kind = ruleAny
	case ruleAny, defn.Interest.String(), defn.Data.String():
	default:
		return r, fmt.Errorf("%w: kind %q", defn.ErrBadRule, r.Kind)
	}

	switch r.Direction {
	case "":
		r.Direction = ruleAny
	case ruleAny, defn.Ingress.String(), defn.Egress.String():
	default:
		return r, fmt.Errorf("%w: direction %q", defn.ErrBadRule, r.Direction)
	}

	switch r.Action {
	case "":
		r.Action = ruleDrop
	case ruleDrop, ruleAccept:
	default:
		return r, fmt.Errorf("%w: action %q", defn.ErrBadRule, r.Action)
	}

	name, err := enc.NameFromStr(r.Prefix)
	if err != nil {
		return r, fmt.Errorf("%w: prefix %q: %w", defn.ErrBadRule, r.Prefix, err)
	}
	r.Prefix = name.String()

	if r.Face, err = canonicalEndpoint(r.Face); err != nil {
		return r, err
	}
	if r.Egress, err = canonicalEndpoint(r.Egress); err != nil {
		return r, err
	}
	if r.Egress != "" && r.Action != ruleAccept {
		return r, fmt.Errorf("%w: egress requires action accept", defn.ErrBadRule)
	}

	return r, nil
}

func canonicalEndpoint(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	uri := defn.DecodeURIString(s)
	if err := uri.Canonize(); err != nil {
		return "", fmt.Errorf("%w: endpoint %q", defn.ErrBadRule, s)
	}
	return uri.String(), nil
}

// ruleFile is the document read by LoadRuleFile.
type ruleFile struct {
	Rules []Rule `json:"rules"`
}

// LoadRuleFile reads a YAML rule file of the form "rules: [...]".
func LoadRuleFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open rule file: %w", err)
	}
	defer f.Close()

	var doc ruleFile
	dec := yaml.NewDecoder(f, yaml.Strict())
	if err = dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("unable to parse rule file: %w", err)
	}
	return doc.Rules, nil
}
