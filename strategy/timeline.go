// Package strategy builds and validates collections-strategy timelines:
// ordered timing columns holding action or decision blocks, enriched with
// the owner's stored contact methods.
package strategy

import (
	"fmt"
	"strings"
)

const (
	BlockTypeAction   = "action"
	BlockTypeDecision = "decision"
)

type DecisionOutput struct {
	Condition  string `json:"condition"`
	NextTiming string `json:"next_timing,omitempty"`
	Action     string `json:"action,omitempty"`
}

// Block is a tagged union on BlockType: action blocks carry the channel
// fields, decision blocks the decision fields. An empty BlockType means
// "action".
type Block struct {
	BlockType string `json:"block_type,omitempty"`

	// action fields
	Source              string `json:"source,omitempty"`
	Tone                string `json:"tone,omitempty"`
	Content             string `json:"content,omitempty"`
	ContactMethodDetail string `json:"contact_method_detail,omitempty"`
	PreferredContact    string `json:"preferred_contact,omitempty"`

	// decision fields
	DecisionPrompt  string           `json:"decision_prompt,omitempty"`
	DecisionSources []string         `json:"decision_sources,omitempty"`
	DecisionOutputs []DecisionOutput `json:"decision_outputs,omitempty"`
}

// Type returns the effective block type, defaulting to action.
func (b Block) Type() string {
	if b.BlockType == "" {
		return BlockTypeAction
	}
	return b.BlockType
}

type TimelineColumn struct {
	Timing string  `json:"timing"`
	Blocks []Block `json:"blocks"`
}

type Violation struct {
	Column  int    `json:"column"`
	Block   int    `json:"block"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SchemaError carries every violation found in a submitted timeline so the
// caller can surface them all at once.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid strategy timeline"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("column %d block %d %s: %s", v.Column, v.Block, v.Field, v.Message))
	}
	return "invalid strategy timeline: " + strings.Join(parts, "; ")
}

// Validate checks that every block's populated fields agree with its type.
// Timings are expected to be defaulted already (see Enrich).
func Validate(timeline []TimelineColumn) error {
	var violations []Violation

	add := func(col, blk int, field, message string) {
		violations = append(violations, Violation{Column: col, Block: blk, Field: field, Message: message})
	}

	for ci, column := range timeline {
		if column.Timing == "" {
			add(ci, -1, "timing", "timing label is required")
		}
		for bi, b := range column.Blocks {
			switch b.Type() {
			case BlockTypeAction:
				if b.Source == "" {
					add(ci, bi, "source", "action block requires a source channel")
				}
				if b.Tone == "" {
					add(ci, bi, "tone", "action block requires a tone")
				}
				if b.Content == "" {
					add(ci, bi, "content", "action block requires content")
				}
				if b.DecisionPrompt != "" {
					add(ci, bi, "decision_prompt", "not allowed on an action block")
				}
				if len(b.DecisionSources) > 0 {
					add(ci, bi, "decision_sources", "not allowed on an action block")
				}
				if len(b.DecisionOutputs) > 0 {
					add(ci, bi, "decision_outputs", "not allowed on an action block")
				}
			case BlockTypeDecision:
				if b.DecisionPrompt == "" {
					add(ci, bi, "decision_prompt", "decision block requires a prompt")
				}
				if b.Source != "" {
					add(ci, bi, "source", "not allowed on a decision block")
				}
				if b.Tone != "" {
					add(ci, bi, "tone", "not allowed on a decision block")
				}
				if b.Content != "" {
					add(ci, bi, "content", "not allowed on a decision block")
				}
				if b.ContactMethodDetail != "" {
					add(ci, bi, "contact_method_detail", "not allowed on a decision block")
				}
				if b.PreferredContact != "" {
					add(ci, bi, "preferred_contact", "not allowed on a decision block")
				}
				for oi, out := range b.DecisionOutputs {
					if out.Condition == "" {
						add(ci, bi, fmt.Sprintf("decision_outputs[%d].condition", oi), "outcome condition is required")
					}
				}
			default:
				add(ci, bi, "block_type", fmt.Sprintf("unknown block type %q", b.BlockType))
			}
		}
	}

	if len(violations) > 0 {
		return &SchemaError{Violations: violations}
	}
	return nil
}
