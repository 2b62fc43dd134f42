package models

import (
	"fmt"
	"time"
)

// NodeType tags the node union. Dispatch is an explicit switch per variant
// rather than interface dispatch so graphs stay trivially serializable.
type NodeType string

const (
	NodeTypeAction   NodeType = "action"
	NodeTypeDecision NodeType = "decision"
	NodeTypeWait     NodeType = "wait"
	NodeTypeABTest   NodeType = "abtest"
)

// WaitUnit is the time unit of a wait node duration.
type WaitUnit string

const (
	WaitUnitMinutes WaitUnit = "minutes"
	WaitUnitHours   WaitUnit = "hours"
	WaitUnitDays    WaitUnit = "days"
)

// Node is one unit of workflow behavior. Exactly the fields of its variant
// are set; all node-to-node links are string ids resolved against the owning
// graph's node map ("" means terminal).
type Node struct {
	ID   string   `json:"id"   validate:"required"`
	Type NodeType `json:"type" validate:"required,oneof=action decision wait abtest"`

	// Action fields.
	ActionType string         `json:"action_type,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`
	Next       string         `json:"next,omitempty"`

	// Decision fields.
	Group     *ConditionGroup `json:"group,omitempty"`
	TrueNext  string          `json:"true_next,omitempty"`
	FalseNext string          `json:"false_next,omitempty"`

	// Wait fields.
	Duration int      `json:"duration,omitempty"`
	Unit     WaitUnit `json:"unit,omitempty"`

	// ABTest fields.
	SplitPercentage int    `json:"split_percentage,omitempty"`
	VariantANext    string `json:"variant_a_next,omitempty"`
	VariantBNext    string `json:"variant_b_next,omitempty"`
}

// WaitDuration converts the wait node's duration/unit pair.
func (n *Node) WaitDuration() time.Duration {
	switch n.Unit {
	case WaitUnitMinutes:
		return time.Duration(n.Duration) * time.Minute
	case WaitUnitHours:
		return time.Duration(n.Duration) * time.Hour
	case WaitUnitDays:
		return time.Duration(n.Duration) * 24 * time.Hour
	default:
		return 0
	}
}

// references returns every outgoing node-id link of this node, including
// empty (terminal) ones.
func (n *Node) references() []string {
	switch n.Type {
	case NodeTypeAction, NodeTypeWait:
		return []string{n.Next}
	case NodeTypeDecision:
		return []string{n.TrueNext, n.FalseNext}
	case NodeTypeABTest:
		return []string{n.VariantANext, n.VariantBNext}
	default:
		return nil
	}
}

// Validate checks variant-specific constraints. Link resolution is the
// graph's job; this only covers fields local to the node.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidGraph)
	}

	switch n.Type {
	case NodeTypeAction:
		if n.ActionType == "" {
			return fmt.Errorf("%w: node %q: action_type is required", ErrInvalidGraph, n.ID)
		}
	case NodeTypeDecision:
		if n.Group == nil {
			return fmt.Errorf("%w: node %q: decision requires a condition group", ErrInvalidGraph, n.ID)
		}

		if err := n.Group.Validate(); err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
	case NodeTypeWait:
		if n.Duration <= 0 {
			return fmt.Errorf("%w: node %q: wait duration must be positive", ErrInvalidGraph, n.ID)
		}

		if n.Unit != WaitUnitMinutes && n.Unit != WaitUnitHours && n.Unit != WaitUnitDays {
			return fmt.Errorf("%w: node %q: unknown wait unit %q", ErrInvalidGraph, n.ID, n.Unit)
		}
	case NodeTypeABTest:
		if n.SplitPercentage < 0 || n.SplitPercentage > 100 {
			return fmt.Errorf("%w: node %q: split_percentage must be in [0,100]", ErrInvalidGraph, n.ID)
		}
	default:
		return fmt.Errorf("%w: node %q: unknown node type %q", ErrInvalidGraph, n.ID, n.Type)
	}

	return nil
}
