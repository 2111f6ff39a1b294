package ingest

// Step is one statement shape and the rows to write with it.
type Step struct {
	Statement Statement
	Rows      []Tuple
}

// Plan is the ordered list of steps for one batch. Primary rows always come
// before the secondaries that reference them.
type Plan struct {
	Steps []Step
}

// Len returns the total number of rows across all steps.
func (p *Plan) Len() int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.Rows)
	}
	return n
}

// accumulator collects projected rows for one statement and collapses
// duplicate keys.
type accumulator struct {
	stmt      Statement
	lastWins  bool
	rows      []Tuple
	positions map[string]int
}

func newAccumulator(stmt Statement) *accumulator {
	return &accumulator{
		stmt:      stmt,
		lastWins:  stmt.Op == OpUpdate,
		positions: make(map[string]int),
	}
}

func (a *accumulator) add(t Tuple) {
	row := a.stmt.Project(t)
	key := a.stmt.KeyOf(row)
	if i, ok := a.positions[key]; ok {
		if a.lastWins {
			a.rows[i] = row
		}
		return
	}
	a.positions[key] = len(a.rows)
	a.rows = append(a.rows, row)
}

func (a *accumulator) step() (Step, bool) {
	if len(a.rows) == 0 {
		return Step{}, false
	}
	return Step{Statement: a.stmt, Rows: a.rows}, true
}

// Planner decides how normalized rows are written. Inserts are
// insert-if-absent, updates overwrite mutable columns of existing rows, and
// secondaries from either list are always insert-if-absent.
type Planner struct {
	table *Table

	primaryInserts *accumulator
	primaryUpdates *accumulator
	emojis         *accumulator
	files          *accumulator
	reactions      *accumulator
}

func NewPlanner(kind Kind) *Planner {
	t := PrimaryTable(kind)
	return &Planner{
		table:          t,
		primaryInserts: newAccumulator(Statement{Table: t, Op: OpInsert}),
		primaryUpdates: newAccumulator(Statement{Table: t, Op: OpUpdate}),
		emojis:         newAccumulator(Statement{Table: EmojisTable, Op: OpInsert}),
		files:          newAccumulator(Statement{Table: FilesTable, Op: OpInsert}),
		reactions:      newAccumulator(Statement{Table: ReactionsTable, Op: OpInsert}),
	}
}

// AddInsert plans a record from the batch's inserts list.
func (p *Planner) AddInsert(r Rows) {
	p.primaryInserts.add(r.Primary)
	p.addSecondaries(r)
}

// AddUpdate plans a record from the batch's updates list.
func (p *Planner) AddUpdate(r Rows) {
	p.primaryUpdates.add(r.Primary)
	p.addSecondaries(r)
}

func (p *Planner) addSecondaries(r Rows) {
	for _, t := range r.Emojis {
		p.emojis.add(t)
	}
	for _, t := range r.Files {
		p.files.add(t)
	}
	for _, t := range r.Reactions {
		p.reactions.add(t)
	}
}

// Plan returns the steps in execution order: primary inserts, primary
// updates, then emojis, files and reactions. Reactions reference both
// messages and emojis so they go last.
func (p *Planner) Plan() *Plan {
	plan := &Plan{}
	for _, a := range []*accumulator{p.primaryInserts, p.primaryUpdates, p.emojis, p.files, p.reactions} {
		if s, ok := a.step(); ok {
			plan.Steps = append(plan.Steps, s)
		}
	}
	return plan
}
