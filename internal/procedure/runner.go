// Package procedure runs the session database schema upgrade: it scaffolds an
// Alembic workspace, wires it to the session database and schema module,
// generates a revision from the schema delta, and applies it.
//
// Stages run strictly in sequence and the first failure stops the run.
package procedure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aqasim81/session-migrate/internal/alembic"
	"github.com/aqasim81/session-migrate/internal/analyzer"
	"github.com/aqasim81/session-migrate/internal/database"
	"github.com/aqasim81/session-migrate/internal/patch"
	"github.com/aqasim81/session-migrate/internal/revision"
	"github.com/aqasim81/session-migrate/internal/workspace"
)

// Defaults for values normally supplied by configuration.
const (
	DefaultMessage      = "session schema delta"
	DefaultMetadataAttr = "Base.metadata"
)

const cleanupTimeout = 10 * time.Second

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ProgressEvent is emitted as each stage starts and finishes.
type ProgressEvent struct {
	Stage    Stage
	Status   string
	Duration time.Duration
	Detail   string // skip reason
	Error    error
}

// Tool is the migration tool the procedure drives.
type Tool interface {
	Init(ctx context.Context, dir, scriptDir string) error
	Stamp(ctx context.Context, dir, rev string) error
	Revision(ctx context.Context, dir, message string) error
	Upgrade(ctx context.Context, dir, rev string) error
	UpgradeSQL(ctx context.Context, dir, revRange string) (string, error)
}

// Analyzer checks an offline upgrade script.
type Analyzer interface {
	Analyze(sql string) (*analyzer.Result, error)
}

// Result describes how far a run got and what it produced.
type Result struct {
	State       State
	Heads       []string // head revisions of the generated step files
	Generated   []string // step file paths
	Injected    []string // step files that received the import line
	Findings    []analyzer.Finding
	MaxSeverity analyzer.Severity
	RolledBack  bool // committed workspace was removed after a failure
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithProgressCallback sets a function called as each stage starts and ends.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// WithStageTimeout bounds each stage; zero means no limit.
func WithStageTimeout(d time.Duration) Option {
	return func(r *Runner) { r.stageTimeout = d }
}

// WithMessage sets the revision message.
func WithMessage(m string) Option {
	return func(r *Runner) { r.message = m }
}

// WithMetadataAttr sets the attribute of the schema module that holds the MetaData.
func WithMetadataAttr(attr string) Option {
	return func(r *Runner) { r.metadataAttr = attr }
}

// WithAnalyzer enables offline analysis of the pending upgrade. nil disables it.
func WithAnalyzer(a Analyzer) Option {
	return func(r *Runner) { r.analyzer = a }
}

// WithForce applies upgrades even when analysis finds dangerous operations.
func WithForce(b bool) Option {
	return func(r *Runner) { r.force = b }
}

// WithTargetOpener overrides how the database is probed (useful for testing).
func WithTargetOpener(fn TargetOpener) Option {
	return func(r *Runner) { r.openTarget = fn }
}

// WithKeepWorkspace leaves a committed workspace in place after a failure.
func WithKeepWorkspace(b bool) Option {
	return func(r *Runner) { r.keepWorkspace = b }
}

// Runner executes the upgrade procedure against one workspace.
type Runner struct {
	tool          Tool
	ws            *workspace.Workspace
	logger        *slog.Logger
	onProgress    func(ProgressEvent)
	stageTimeout  time.Duration
	message       string
	metadataAttr  string
	analyzer      Analyzer
	force         bool
	keepWorkspace bool
	openTarget    TargetOpener
}

// New creates a Runner with the given tool, workspace, and options.
func New(tool Tool, ws *workspace.Workspace, opts ...Option) *Runner {
	r := &Runner{
		tool:         tool,
		ws:           ws,
		message:      DefaultMessage,
		metadataAttr: DefaultMetadataAttr,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if r.openTarget == nil {
		r.openTarget = func(ctx context.Context, descriptor, here string) (Target, error) {
			return OpenTarget(ctx, descriptor, here, r.logger)
		}
	}

	return r
}

// run carries the resources one Run acquires.
type run struct {
	*Runner

	in        Inputs
	res       *Result
	staging   *workspace.Staging
	committed bool
	target    Target
	lock      Releaser
}

// skipError marks a stage that had nothing to do.
type skipError struct{ reason string }

func (e *skipError) Error() string { return "skipped: " + e.reason }

func skip(reason string) error { return &skipError{reason: reason} }

// Run executes every stage in order. On failure the returned error is a
// *StageError and Result.State is StateFailed.
func (r *Runner) Run(ctx context.Context, in Inputs) (*Result, error) {
	st := &run{Runner: r, in: in, res: &Result{State: StateStart}}

	stages := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageValidate, st.validate},
		{StageGuard, st.guard},
		{StageScaffold, st.scaffold},
		{StageConfigure, st.configure},
		{StageStamp, st.stamp},
		{StageGenerate, st.generate},
		{StageInject, st.inject},
		{StageAnalyze, st.analyze},
		{StageUpgrade, st.upgrade},
	}

	var runErr error

	for _, s := range stages {
		if runErr = st.runStage(ctx, s.stage, s.fn); runErr != nil {
			break
		}
	}

	st.cleanup(ctx, runErr != nil)

	if runErr != nil {
		return st.res, runErr
	}

	return st.res, nil
}

func (st *run) runStage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	st.fireProgress(ProgressEvent{Stage: stage, Status: StatusStarting})

	stageCtx := ctx
	if st.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, st.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx)
	duration := time.Since(start)

	var skipped *skipError
	if errors.As(err, &skipped) {
		st.res.State = stage.completes()
		st.fireProgress(ProgressEvent{Stage: stage, Status: StatusSkipped, Duration: duration, Detail: skipped.reason})

		return nil
	}

	if err != nil {
		st.res.State = StateFailed
		st.fireProgress(ProgressEvent{Stage: stage, Status: StatusFailed, Duration: duration, Error: err})
		st.logger.Debug("stage failed", "stage", stage.String(), "error", err)

		return &StageError{Stage: stage, Err: err}
	}

	st.res.State = stage.completes()
	st.fireProgress(ProgressEvent{Stage: stage, Status: StatusCompleted, Duration: duration})

	return nil
}

func (st *run) validate(context.Context) error {
	if err := st.in.Validate(); err != nil {
		return err
	}

	return ValidateModulePath(st.metadataAttr)
}

func (st *run) guard(context.Context) error {
	return st.ws.Guard()
}

func (st *run) scaffold(ctx context.Context) error {
	staging, err := st.ws.Stage()
	if err != nil {
		return err
	}

	st.staging = staging
	st.logger.Debug("staging workspace", "dir", staging.Dir)

	return st.tool.Init(ctx, staging.Dir, st.ws.ScriptDir)
}

func (st *run) configure(context.Context) error {
	err := patch.Configure(st.staging.Dir, st.ws.ConfigFile, st.ws.ScriptDir, patch.Settings{
		URL:          st.in.Descriptor,
		Module:       st.in.Module,
		MetadataAttr: st.metadataAttr,
	})
	if err != nil {
		return err
	}

	if err := st.staging.Commit(); err != nil {
		return err
	}

	st.committed = true

	return nil
}

func (st *run) stamp(ctx context.Context) error {
	target, err := st.openTarget(ctx, st.in.Descriptor, st.ws.Root)
	if err != nil {
		return fmt.Errorf("probing database: %w", err)
	}

	st.target = target

	lock, err := target.Lock(ctx)
	if err != nil {
		return err
	}

	st.lock = lock

	return st.tool.Stamp(ctx, st.ws.Root, alembic.Head)
}

func (st *run) generate(ctx context.Context) error {
	if err := st.tool.Revision(ctx, st.ws.Root, st.message); err != nil {
		return err
	}

	steps, err := revision.LoadFromDir(st.ws.VersionsPath())
	if err != nil {
		return err
	}

	if len(steps) == 0 {
		return fmt.Errorf("%w in %s", ErrNoRevision, st.ws.VersionsPath())
	}

	if _, err := revision.Order(steps); err != nil {
		return err
	}

	for _, s := range steps {
		st.res.Generated = append(st.res.Generated, s.FilePath)
	}

	st.res.Heads = revision.Heads(steps)

	return nil
}

func (st *run) inject(context.Context) error {
	injected, err := revision.InjectAll(st.ws.VersionsPath(), st.in.Module)
	if err != nil {
		return err
	}

	st.res.Injected = injected

	return nil
}

func (st *run) analyze(ctx context.Context) error {
	if st.analyzer == nil {
		return skip("analysis disabled")
	}

	if st.target.Dialect() != database.DialectPostgres {
		return skip("offline analysis supports PostgreSQL only")
	}

	current, err := st.target.Current(ctx)
	if err != nil {
		return err
	}

	revRange := alembic.Head

	switch len(current) {
	case 0:
	case 1:
		revRange = current[0] + ":" + alembic.Head
	default:
		return skip("database records several revisions")
	}

	sql, err := st.tool.UpgradeSQL(ctx, st.ws.Root, revRange)
	if err != nil {
		return err
	}

	result, err := st.analyzer.Analyze(sql)
	if err != nil {
		return err
	}

	st.res.Findings = result.Findings
	st.res.MaxSeverity = result.MaxSeverity

	if !result.Blocking() {
		return nil
	}

	if st.force {
		st.logger.Warn("applying dangerous upgrade because --force was given",
			"findings", len(result.Findings), "max_severity", result.MaxSeverity.String())

		return nil
	}

	return fmt.Errorf("%w: %d finding(s), highest %s; rerun with --force to apply anyway",
		ErrDangerousUpgrade, len(result.Findings), result.MaxSeverity)
}

func (st *run) upgrade(ctx context.Context) error {
	if err := st.tool.Upgrade(ctx, st.ws.Root, alembic.Head); err != nil {
		return err
	}

	if err := st.target.VerifyHeads(ctx, st.res.Heads); err != nil {
		return fmt.Errorf("verifying upgrade: %w", err)
	}

	st.logger.Debug("database at head", "heads", strings.Join(st.res.Heads, ","))

	return nil
}

// cleanup releases the lock and target and, after a failure, removes the
// staging area and any workspace this run committed.
func (st *run) cleanup(ctx context.Context, failed bool) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if st.lock != nil {
		if err := st.lock.Release(cctx); err != nil {
			st.logger.Warn("releasing session migration lock", "error", err)
		}
	}

	if st.target != nil {
		st.target.Close()
	}

	if st.staging != nil && !st.committed {
		if err := st.staging.Discard(); err != nil {
			st.logger.Warn("removing staging directory", "error", err)
		}
	}

	if !failed || !st.committed {
		return
	}

	if st.keepWorkspace {
		st.logger.Info("keeping migration workspace after failure", "root", st.ws.Root)

		return
	}

	if err := st.ws.Rollback(); err != nil {
		st.logger.Warn("removing migration workspace", "error", err)

		return
	}

	st.res.RolledBack = true
}

func (st *run) fireProgress(e ProgressEvent) {
	if st.onProgress != nil {
		st.onProgress(e)
	}
}
