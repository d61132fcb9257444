package state

import (
	"time"

	"github.com/hb-chen/mkbi/internal/sandbox"
)

// Stage is a state of the pipeline state machine.
type Stage string

const (
	StagePending      Stage = "pending"
	StageInterpreting Stage = "interpreting"
	StageFabricating  Stage = "fabricating"
	StageAnalyzing    Stage = "analyzing"
	StageExecuting    Stage = "executing"
	StageCompleted    Stage = "completed"
	StageAborted      Stage = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageAborted
}

// Keys of the map carried through the graph.
const (
	KeyRunID               = "run_id"
	KeySkill               = "skill"
	KeyRequest             = "request"
	KeyStage               = "stage"
	KeyInterpreterResponse = "interpreter_response"
	KeyFabricatorResponse  = "fabricator_response"
	KeyScriptPath          = "script_path"
	KeyAnalysisPassed      = "analysis_passed"
	KeyAnalysisOutput      = "analysis_output"
	KeyExecution           = "execution"
	KeyError               = "error"
	KeyStartedAt           = "started_at"
)

// RunState is the state of one pipeline run using langgraphgo State Schema
type RunState struct {
	RunID   string `graph:"run_id" json:"run_id"`
	Skill   string `graph:"skill" json:"skill"`
	Request string `graph:"request" json:"request"`
	Stage   Stage  `graph:"stage" json:"stage"`

	// Generation
	InterpreterResponse string `graph:"interpreter_response" json:"interpreter_response"`
	FabricatorResponse  string `graph:"fabricator_response" json:"fabricator_response"`

	// Analysis
	ScriptPath     string `graph:"script_path" json:"-"`
	AnalysisPassed bool   `graph:"analysis_passed" json:"analysis_passed"`
	AnalysisOutput string `graph:"analysis_output" json:"analysis_output"`

	// Execution is nil until a process has run.
	Execution *sandbox.Outcome `graph:"execution" json:"execution"`

	// Error is non-empty iff the run aborted.
	Error string `graph:"error" json:"error,omitempty"`

	StartedAt time.Time `graph:"started_at" json:"started_at"`
}

// New returns the PENDING state of a run.
func New(runID, skillName, request string) *RunState {
	return &RunState{
		RunID:     runID,
		Skill:     skillName,
		Request:   request,
		Stage:     StagePending,
		StartedAt: time.Now(),
	}
}

// Abort moves the run to ABORTED with err as its error.
func (s *RunState) Abort(err error) {
	s.Error = err.Error()
	s.Stage = StageAborted
}

// Aborted reports whether the run ended in ABORTED.
func (s *RunState) Aborted() bool {
	return s.Stage == StageAborted
}

// ToMap converts the state to the map form used by the graph.
func (s *RunState) ToMap() map[string]any {
	m := map[string]any{
		KeyRunID:               s.RunID,
		KeySkill:               s.Skill,
		KeyRequest:             s.Request,
		KeyStage:               string(s.Stage),
		KeyInterpreterResponse: s.InterpreterResponse,
		KeyFabricatorResponse:  s.FabricatorResponse,
		KeyScriptPath:          s.ScriptPath,
		KeyAnalysisPassed:      s.AnalysisPassed,
		KeyAnalysisOutput:      s.AnalysisOutput,
		KeyError:               s.Error,
		KeyStartedAt:           s.StartedAt,
	}
	if s.Execution != nil {
		m[KeyExecution] = s.Execution
	}
	return m
}

// FromMap converts a graph map back into a RunState. Missing or mistyped
// keys leave the zero value.
func FromMap(m map[string]any) *RunState {
	s := &RunState{
		RunID:               getString(m, KeyRunID),
		Skill:               getString(m, KeySkill),
		Request:             getString(m, KeyRequest),
		Stage:               Stage(getString(m, KeyStage)),
		InterpreterResponse: getString(m, KeyInterpreterResponse),
		FabricatorResponse:  getString(m, KeyFabricatorResponse),
		ScriptPath:          getString(m, KeyScriptPath),
		AnalysisPassed:      getBool(m, KeyAnalysisPassed),
		AnalysisOutput:      getString(m, KeyAnalysisOutput),
		Error:               getString(m, KeyError),
	}
	if s.Stage == "" {
		s.Stage = StagePending
	}
	if outcome, ok := m[KeyExecution].(*sandbox.Outcome); ok {
		s.Execution = outcome
	}
	if t, ok := m[KeyStartedAt].(time.Time); ok {
		s.StartedAt = t
	}
	return s
}

func getString(m map[string]any, key string) string {
	if val, ok := m[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case Stage:
			return string(v)
		}
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if val, ok := m[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
