package graph

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Behavior controls when a node with cached outputs runs again. A Passive
// node waits for fresh inputs; an Active node recomputes on every run its
// consumers demand freshness for.
type Behavior int

const (
	Passive Behavior = iota
	Active
)

func (b Behavior) String() string {
	if b == Active {
		return "Active"
	}
	return "Passive"
}

// ParseBehavior reads a behavior keyword, case-insensitively.
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return Active, nil
	case "passive", "":
		return Passive, nil
	default:
		return Passive, fmt.Errorf("unknown node behavior %q (expected Active or Passive)", s)
	}
}

func (b Behavior) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *Behavior) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseBehavior(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// EdgeBehavior controls how often a binding demands a fresh value from its
// producer. Always pulls a recomputed value each run; Once is satisfied by
// whatever the producer already cached.
type EdgeBehavior int

const (
	Always EdgeBehavior = iota
	Once
)

func (b EdgeBehavior) String() string {
	if b == Once {
		return "Once"
	}
	return "Always"
}

// ParseEdgeBehavior reads an edge behavior keyword, case-insensitively.
func ParseEdgeBehavior(s string) (EdgeBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "":
		return Always, nil
	case "once":
		return Once, nil
	default:
		return Always, fmt.Errorf("unknown edge behavior %q (expected Always or Once)", s)
	}
}

func (b EdgeBehavior) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *EdgeBehavior) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseEdgeBehavior(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
