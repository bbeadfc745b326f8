// Package domain holds the stage ordering rules of a pipeline.
// It is pure: no I/O and no dependencies on other pipeline layers.
package domain

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is one of the stage entities a pipeline can reference.
type Stage string

const (
	StageLead        Stage = "lead"
	StageOpportunity Stage = "opportunity"
	StageQuote       Stage = "quote"
	StageContract    Stage = "contract"
)

// Stages lists every stage in progression order.
var Stages = []Stage{StageLead, StageOpportunity, StageQuote, StageContract}

// Action is a transition direction.
type Action string

const (
	ActionProgress Action = "PROGRESS"
	ActionRegress  Action = "REGRESS"
)

// PipelineModel is the StageType model used for pipeline history entries.
const PipelineModel = "pipeline"

var titleCaser = cases.Title(language.English)

// ParseStage returns the stage named s.
func ParseStage(s string) (Stage, bool) {
	stage := Stage(s)
	return stage, stage.Index() >= 0
}

// Index returns the position of s in the progression order, or -1.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

// Previous returns the stage immediately before s.
func (s Stage) Previous() (Stage, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return Stages[idx-1], true
}

// Next returns the stage immediately after s.
func (s Stage) Next() (Stage, bool) {
	idx := s.Index()
	if idx < 0 || idx == len(Stages)-1 {
		return "", false
	}
	return Stages[idx+1], true
}

// Label is the display form used in stage history comments.
func (s Stage) Label() string {
	return titleCaser.String(string(s))
}

// WithArticle returns the label prefixed with "a" or "an".
func (s Stage) WithArticle() string {
	label := s.Label()
	if s == StageOpportunity {
		return "an " + label
	}
	return "a " + label
}

func (s Stage) String() string {
	return string(s)
}
