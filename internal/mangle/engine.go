// Package mangle wraps the Google Mangle Datalog engine for the behavioral
// scanner's fact-based scoring rules.
package mangle

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"
	"github.com/google/mangle/unionfind"
)

// Config holds engine tuning knobs.
type Config struct {
	FactLimit    int
	QueryTimeout time.Duration
}

// DefaultConfig returns sane defaults for a single scan's fact volume.
func DefaultConfig() Config {
	return Config{FactLimit: 50000, QueryTimeout: 5 * time.Second}
}

// Fact is a single ground atom to assert, predicate plus positional args.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// Engine is a short-lived, single-scan Datalog fact store and rule evaluator.
// Unlike a long-running service engine it carries no persistence: a scan
// profile's facts exist only for the duration of one scan() call.
type Engine struct {
	config Config

	mu              sync.RWMutex
	store           factstore.ConcurrentFactStore
	programInfo     *analysis.ProgramInfo
	queryContext    *mengine.QueryContext
	predicateIndex  map[string]ast.PredicateSym
	schemaFragments []parse.SourceUnit
	factCount       int
}

// NewEngine constructs an empty engine; call LoadSchemaString before
// asserting facts or evaluating rules.
func NewEngine(cfg Config) *Engine {
	base := factstore.NewSimpleInMemoryStore()
	return &Engine{
		config:         cfg,
		store:          factstore.NewConcurrentFactStore(base),
		predicateIndex: make(map[string]ast.PredicateSym),
	}
}

// LoadSchemaString parses and merges a Mangle source fragment (declarations
// and/or rules) into the engine's program.
func (e *Engine) LoadSchemaString(schema string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(schema)))
	if err != nil {
		return fmt.Errorf("parse mangle schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.schemaFragments = append(e.schemaFragments, unit)
	return e.rebuildProgramLocked()
}

func (e *Engine) rebuildProgramLocked() error {
	var clauses []ast.Clause
	var decls []ast.Decl
	for _, fragment := range e.schemaFragments {
		clauses = append(clauses, fragment.Clauses...)
		decls = append(decls, fragment.Decls...)
	}

	unit := parse.SourceUnit{Clauses: clauses, Decls: decls}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("analyze mangle program: %w", err)
	}

	e.programInfo = programInfo
	e.predicateIndex = make(map[string]ast.PredicateSym, len(programInfo.Decls))

	predToDecl := make(map[ast.PredicateSym]*ast.Decl, len(programInfo.Decls))
	for sym, decl := range programInfo.Decls {
		e.predicateIndex[sym.Symbol] = sym
		predToDecl[sym] = decl
	}

	predToRules := make(map[ast.PredicateSym][]ast.Clause)
	for _, clause := range programInfo.Rules {
		predToRules[clause.Head.Predicate] = append(predToRules[clause.Head.Predicate], clause)
	}

	e.queryContext = &mengine.QueryContext{
		PredToRules: predToRules,
		PredToDecl:  predToDecl,
		Store:       e.store,
	}
	return nil
}

// AddFact asserts one ground fact for the given declared predicate.
func (e *Engine) AddFact(predicate string, args ...interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.programInfo == nil {
		return fmt.Errorf("no schema loaded; call LoadSchemaString first")
	}
	if e.config.FactLimit > 0 && e.factCount >= e.config.FactLimit {
		return fmt.Errorf("fact limit exceeded: %d", e.config.FactLimit)
	}

	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return fmt.Errorf("predicate %s is not declared", predicate)
	}
	if len(args) != sym.Arity {
		return fmt.Errorf("predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}

	terms := make([]ast.BaseTerm, len(args))
	for i, raw := range args {
		term, err := toTerm(raw)
		if err != nil {
			return fmt.Errorf("predicate %s arg %d: %w", predicate, i, err)
		}
		terms[i] = term
	}

	if e.store.Add(ast.Atom{Predicate: sym, Args: terms}) {
		e.factCount++
	}
	return nil
}

func toTerm(value interface{}) (ast.BaseTerm, error) {
	switch v := value.(type) {
	case ast.BaseTerm:
		return v, nil
	case string:
		if strings.HasPrefix(v, "/") {
			return ast.Name(v)
		}
		return ast.String(v), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	case int:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case float64:
		return ast.Float64(v), nil
	default:
		return nil, fmt.Errorf("unsupported fact argument type %T", value)
	}
}

// Query evaluates a Mangle query atom (e.g. "is_honeypot(X, Reasons)") and
// returns one row per matching binding, keyed by variable name.
func (e *Engine) Query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	atom, variables, err := parseQueryAtom(query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	qctx := e.queryContext
	if qctx == nil {
		e.mu.RUnlock()
		return nil, fmt.Errorf("no schema loaded")
	}
	decl, ok := qctx.PredToDecl[atom.Predicate]
	if !ok {
		e.mu.RUnlock()
		return nil, fmt.Errorf("predicate %s is not declared", atom.Predicate.Symbol)
	}
	modes := decl.Modes()
	if len(modes) == 0 {
		e.mu.RUnlock()
		return nil, fmt.Errorf("predicate %s has no modes declared", atom.Predicate.Symbol)
	}
	mode := modes[0]
	e.mu.RUnlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		timeout := e.config.QueryTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var results []map[string]interface{}
	done := make(chan error, 1)
	go func() {
		done <- qctx.EvalQuery(atom, mode, unionfind.New(), func(fact ast.Atom) error {
			row := make(map[string]interface{}, len(variables))
			for _, v := range variables {
				if v.index < len(fact.Args) {
					row[v.name] = fromTerm(fact.Args[v.index])
				}
			}
			results = append(results, row)
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", query, err)
		}
		return results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("query %q timed out: %w", query, ctx.Err())
	}
}

type queryVar struct {
	name  string
	index int
}

func parseQueryAtom(query string) (ast.Atom, []queryVar, error) {
	clean := strings.TrimSpace(query)
	clean = strings.TrimPrefix(clean, "?")
	clean = strings.TrimSpace(clean)
	clean = strings.TrimSuffix(clean, ".")

	atom, err := parse.Atom(clean)
	if err != nil {
		return ast.Atom{}, nil, fmt.Errorf("parse query %q: %w", query, err)
	}

	var vars []queryVar
	for i, arg := range atom.Args {
		if v, ok := arg.(ast.Variable); ok {
			vars = append(vars, queryVar{name: v.Symbol, index: i})
		}
	}
	return atom, vars, nil
}

func fromTerm(term ast.BaseTerm) interface{} {
	c, ok := term.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", term)
	}
	switch c.Type {
	case ast.NumberType:
		return c.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(c.NumValue))
	default:
		return c.Symbol
	}
}

// Reset drops all asserted facts while keeping the loaded schema, so the
// engine can be reused across scan stages within one scan() call.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	base := factstore.NewSimpleInMemoryStore()
	e.store = factstore.NewConcurrentFactStore(base)
	e.factCount = 0
	if e.queryContext != nil {
		e.queryContext.Store = e.store
	}
}
