package procedure

import "fmt"

// Stage is one step of the upgrade procedure.
type Stage int

// Stages in execution order.
const (
	StageValidate Stage = iota + 1
	StageGuard
	StageScaffold
	StageConfigure
	StageStamp
	StageGenerate
	StageInject
	StageAnalyze
	StageUpgrade
)

//nolint:gochecknoglobals // lookup table
var stageNames = map[Stage]string{
	StageValidate:  "validate",
	StageGuard:     "guard",
	StageScaffold:  "scaffold",
	StageConfigure: "configure",
	StageStamp:     "stamp",
	StageGenerate:  "generate",
	StageInject:    "inject",
	StageAnalyze:   "analyze",
	StageUpgrade:   "upgrade",
}

//nolint:gochecknoglobals // lookup table
var stageDescriptions = map[Stage]string{
	StageValidate:  "checking arguments",
	StageGuard:     "checking for an existing migration workspace",
	StageScaffold:  "creating migration workspace",
	StageConfigure: "wiring connection and schema metadata",
	StageStamp:     "stamping database at head",
	StageGenerate:  "generating schema revision",
	StageInject:    "injecting schema module import",
	StageAnalyze:   "analyzing pending upgrade",
	StageUpgrade:   "upgrading database to head",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}

	return fmt.Sprintf("stage(%d)", int(s))
}

// Description is a short present-tense phrase for progress output.
func (s Stage) Description() string {
	return stageDescriptions[s]
}

// completes returns the state reached when s succeeds.
func (s Stage) completes() State {
	return State(s)
}

// State is the position of a run in the procedure's state machine.
type State int

// States; each successful stage moves one step right, any failure moves to StateFailed.
const (
	StateStart State = iota
	StateValidated
	StateWorkspaceChecked
	StateScaffolded
	StateConfigured
	StateStamped
	StateGenerated
	StateInjected
	StateAnalyzed
	StateUpgraded
	StateFailed
)

//nolint:gochecknoglobals // lookup table
var stateNames = [...]string{
	StateStart:            "start",
	StateValidated:        "validated",
	StateWorkspaceChecked: "workspace-checked",
	StateScaffolded:       "scaffolded",
	StateConfigured:       "configured",
	StateStamped:          "stamped",
	StateGenerated:        "generated",
	StateInjected:         "injected",
	StateAnalyzed:         "analyzed",
	StateUpgraded:         "upgraded",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// StageError reports which stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
