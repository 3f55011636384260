package engine

import (
	"context"
	"fmt"
	"time"

	"records-migrate/internal/dialect"
	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"go.uber.org/zap"
)

// State is a stage of a migration run.
type State string

const (
	StateInit       State = "INIT"
	StateConnecting State = "CONNECTING"
	StateCleaning   State = "CLEANING"
	StateSchema     State = "SCHEMA"
	StateData       State = "DATA"
	StateViews      State = "VIEWS"
	StateVerifying  State = "VERIFYING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Event moves a run from one state to the next.
type Event string

const (
	EventStart         Event = "start"
	EventConnected     Event = "connected"
	EventConnectFailed Event = "connect_failed"
	EventCleaned       Event = "cleaned"
	EventSchemaApplied Event = "schema_applied"
	EventDataMigrated  Event = "data_migrated"
	EventViewsApplied  Event = "views_applied"
	EventVerified      Event = "verified"
)

// Only a connection failure leads to FAILED; later stages degrade instead.
var transitions = map[State]map[Event]State{
	StateInit:       {EventStart: StateConnecting},
	StateConnecting: {EventConnected: StateCleaning, EventConnectFailed: StateFailed},
	StateCleaning:   {EventCleaned: StateSchema},
	StateSchema:     {EventSchemaApplied: StateData},
	StateData:       {EventDataMigrated: StateViews},
	StateViews:      {EventViewsApplied: StateVerifying},
	StateVerifying:  {EventVerified: StateDone},
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("no transition from %s on %s", s, e)
}

// Terminal reports whether no event leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition is one recorded state change.
type Transition struct {
	From  State
	Event Event
	To    State
	At    time.Time
}

// Plan is everything a run needs besides the connections.
type Plan struct {
	// Tables in migration order. Empty means every source table.
	Tables []string
	// Views dropped by CleanupDrop, in creation order.
	Views []string
	// SchemaName is the source schema analyzed for foreign keys.
	SchemaName   string
	SchemaScript string
	ViewScript   string
	Marker       string
	Cleanup      CleanupMode
	Policy       FailurePolicy
}

// OpenFunc opens one endpoint.
type OpenFunc func(ctx context.Context, name string, cfg dialect.ConnConfig, log *zap.Logger) (*store.Store, error)

// RunResult collects the outcome of every stage.
type RunResult struct {
	History       []Transition
	Order         []schema.TableSpec
	OrderWarnings []string
	Cleanup       CleanupResult
	Schema        ApplyResult
	Data          []MigrationResult
	Views         ApplyResult
	Report        *Report
}

// State returns the last state reached.
func (r *RunResult) State() State {
	if len(r.History) == 0 {
		return StateInit
	}
	return r.History[len(r.History)-1].To
}

// Succeeded reports whether the run finished and verification matched.
func (r *RunResult) Succeeded() bool {
	return r.State() == StateDone && r.Report != nil && r.Report.OverallSuccess
}

// Orchestrator drives a migration through its stages.
type Orchestrator struct {
	Source      dialect.ConnConfig
	Destination dialect.ConnConfig
	Plan        Plan
	Log         *zap.Logger
	Progress    Progress
	// Open defaults to store.Open.
	Open OpenFunc
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o *Orchestrator) open() OpenFunc {
	if o.Open == nil {
		return store.Open
	}
	return o.Open
}

// run tracks the current state of one Run call.
type run struct {
	state  State
	result *RunResult
	log    *zap.Logger
}

func (r *run) fire(e Event) {
	to, err := Next(r.state, e)
	if err != nil {
		// transitions are fired in a fixed sequence below
		panic(err)
	}
	r.result.History = append(r.result.History, Transition{From: r.state, Event: e, To: to, At: time.Now().UTC()})
	r.log.Info("Stage", zap.String("from", string(r.state)), zap.String("event", string(e)), zap.String("to", string(to)))
	r.state = to
}

// Run executes the whole migration. The returned error is non-nil only when
// a store could not be opened; every other failure is recorded in the result
// and the run continues to verification. Connections are closed on return.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	log := o.log()
	r := &run{state: StateInit, result: &RunResult{}, log: log}
	r.fire(EventStart)

	src, dst, err := o.connect(ctx)
	if err != nil {
		log.Error("Connection failed", zap.Error(err))
		r.fire(EventConnectFailed)
		return r.result, err
	}
	defer src.Close()
	defer dst.Close()
	r.fire(EventConnected)

	res := r.result
	res.Order, res.OrderWarnings = o.resolveOrder(ctx, src)
	log.Info("Migration order", zap.Strings("tables", schema.Names(res.Order)))

	res.Cleanup = Clean(ctx, dst, o.Plan.Cleanup, res.Order, o.Plan.Views, log)
	r.fire(EventCleaned)

	res.Schema = o.applyScript(ctx, dst, "schema", o.Plan.SchemaScript)
	r.fire(EventSchemaApplied)

	m := &DataMigrator{Policy: o.Plan.Policy, Log: log, Progress: o.Progress}
	res.Data = m.Migrate(ctx, src, dst, res.Order)
	r.fire(EventDataMigrated)

	res.Views = o.applyScript(ctx, dst, "views", o.Plan.ViewScript)
	r.fire(EventViewsApplied)

	res.Report = Verify(ctx, src, dst, res.Order, log)
	r.fire(EventVerified)

	log.Info("Migration finished", zap.Bool("verified", res.Report.OverallSuccess), zap.Int("tables", len(res.Order)))
	return res, nil
}

// ResolveOrder connects to both stores, resolves the table order and closes
// the connections again without writing anything.
func (o *Orchestrator) ResolveOrder(ctx context.Context) ([]schema.TableSpec, []string, error) {
	src, dst, err := o.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()
	defer dst.Close()
	specs, warnings := o.resolveOrder(ctx, src)
	return specs, warnings, nil
}

// Verify connects to both stores and compares row counts of the resolved
// table order without migrating anything.
func (o *Orchestrator) Verify(ctx context.Context) (*Report, error) {
	src, dst, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	defer dst.Close()
	specs, _ := o.resolveOrder(ctx, src)
	return Verify(ctx, src, dst, specs, o.log()), nil
}

func (o *Orchestrator) connect(ctx context.Context) (*store.Store, *store.Store, error) {
	open := o.open()
	src, err := open(ctx, store.Source, o.Source, o.log())
	if err != nil {
		return nil, nil, err
	}
	dst, err := open(ctx, store.Destination, o.Destination, o.log())
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return src, dst, nil
}

func (o *Orchestrator) resolveOrder(ctx context.Context, src *store.Store) ([]schema.TableSpec, []string) {
	log := o.log()
	tables, err := schema.Analyze(ctx, src.DB, src.Dialect, o.Plan.SchemaName)
	if err != nil {
		w := fmt.Sprintf("source schema analysis failed, keeping configured order: %v", err)
		log.Warn("Schema analysis failed", zap.Error(err))
		return schema.SpecsFromNames(o.Plan.Tables), []string{w}
	}
	specs, warnings := schema.ResolveOrder(o.Plan.Tables, tables)
	if len(specs) == 0 {
		warnings = append(warnings, fmt.Sprintf("no tables to migrate: source schema %q has no tables", src.Dialect.GetSchemaName(o.Plan.SchemaName)))
	}
	for _, w := range warnings {
		log.Warn("Table order", zap.String("warning", w))
	}
	return specs, warnings
}

func (o *Orchestrator) applyScript(ctx context.Context, dst *store.Store, name, src string) ApplyResult {
	log := o.log().With(zap.String("script", name))
	res := ApplyScript(ctx, dst.DB, src, o.Plan.Marker, log)
	if res.Total == 0 {
		log.Info("No statements to apply")
		return res
	}
	log.Info("Script applied", zap.Int("applied", res.Applied), zap.Int("warnings", len(res.Warnings)), zap.Int("total", res.Total))
	return res
}
