package safety

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"
	"github.com/google/mangle/unionfind"
)

// fact is a single ground Datalog fact to assert into the engine.
type fact struct {
	predicate string
	args      []any
}

// engine is a minimal Mangle program: a fixed rule set loaded once at
// construction, re-evaluated against whatever facts are currently
// asserted. It trims the fuller fact-store reverse-indexing and file
// incremental-update machinery a code-graph engine needs down to what a
// per-decision policy evaluator needs: load rules once, assert this
// decision's facts, evaluate, query, discard.
type engine struct {
	mu sync.Mutex

	store       factstore.ConcurrentFactStore
	baseStore   factstore.FactStoreWithRemove
	programInfo *analysis.ProgramInfo
	queryCtx    *mengine.QueryContext
	predicates  map[string]ast.PredicateSym
}

// newEngine parses program (a full Datalog source: decls, static policy
// facts, and rules) and returns an engine ready to accept per-decision
// facts.
func newEngine(program string) (*engine, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(program)))
	if err != nil {
		return nil, fmt.Errorf("parse policy program: %w", err)
	}

	base := factstore.NewSimpleInMemoryStore()
	e := &engine{
		baseStore: base,
		store:     factstore.NewConcurrentFactStore(base),
	}

	info, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: unit.Clauses, Decls: unit.Decls}, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze policy program: %w", err)
	}

	predicates := make(map[string]ast.PredicateSym, len(info.Decls))
	predToDecl := make(map[ast.PredicateSym]*ast.Decl, len(info.Decls))
	predToRules := make(map[ast.PredicateSym][]ast.Clause)
	for sym, decl := range info.Decls {
		predicates[sym.Symbol] = sym
		predToDecl[sym] = decl
	}
	for _, clause := range info.Rules {
		predToRules[clause.Head.Predicate] = append(predToRules[clause.Head.Predicate], clause)
	}

	e.programInfo = info
	e.predicates = predicates
	e.queryCtx = &mengine.QueryContext{
		PredToRules: predToRules,
		PredToDecl:  predToDecl,
		Store:       e.store,
	}
	return e, nil
}

// assert adds facts to the store and re-evaluates the program. It is the
// caller's job to supply a fresh engine (or call reset) between unrelated
// decisions, since evaluation is cumulative.
func (e *engine) assert(facts ...fact) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, f := range facts {
		atom, err := e.toAtomLocked(f)
		if err != nil {
			return err
		}
		e.store.Add(atom)
	}

	_, err := mengine.EvalProgramWithStats(e.programInfo, e.store)
	return err
}

// reset clears asserted facts so the engine can be reused for the next
// decision without re-parsing and re-analyzing the policy program.
func (e *engine) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseStore = factstore.NewSimpleInMemoryStore()
	e.store = factstore.NewConcurrentFactStore(e.baseStore)
	e.queryCtx.Store = e.store
}

// holds reports whether predicate holds for the given ground args, i.e.
// whether a query like "denied(my-action)" returns at least one binding.
func (e *engine) holds(ctx context.Context, predicate string, args ...any) (bool, error) {
	e.mu.Lock()
	sym, ok := e.predicates[predicate]
	queryCtx := e.queryCtx
	var decl *ast.Decl
	if ok {
		decl = queryCtx.PredToDecl[sym]
	}
	e.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("predicate %s is not declared in the policy program", predicate)
	}
	if decl == nil || len(decl.Modes()) == 0 {
		return false, fmt.Errorf("predicate %s has no declared mode", predicate)
	}
	mode := decl.Modes()[0]

	terms := make([]ast.BaseTerm, len(args))
	for i, a := range args {
		term, err := toTerm(a)
		if err != nil {
			return false, err
		}
		terms[i] = term
	}
	queryAtom := ast.Atom{Predicate: sym, Args: terms}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	found := false
	err := queryCtx.EvalQuery(queryAtom, mode, unionfind.New(), func(ast.Atom) error {
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (e *engine) toAtomLocked(f fact) (ast.Atom, error) {
	sym, ok := e.predicates[f.predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared in the policy program", f.predicate)
	}
	if len(f.args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", f.predicate, sym.Arity, len(f.args))
	}
	terms := make([]ast.BaseTerm, len(f.args))
	for i, raw := range f.args {
		term, err := toTerm(raw)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", f.predicate, i, err)
		}
		terms[i] = term
	}
	return ast.Atom{Predicate: sym, Args: terms}, nil
}

// toTerm converts a Go value into a Mangle constant. Strings starting
// with "/" become Name constants (Mangle's enum-like atoms); everything
// else is a plain string or number constant. This is deliberately a much
// smaller type-coercion surface than a general-purpose fact store needs,
// since policy facts here are always one of: an action id, a name
// constant, a path string, or a confidence float.
func toTerm(value any) (ast.BaseTerm, error) {
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, "/") {
			name, err := ast.Name(v)
			if err != nil {
				return nil, err
			}
			return name, nil
		}
		return ast.String(v), nil
	case float64:
		return ast.Float64(v), nil
	case int:
		return ast.Number(int64(v)), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return nil, fmt.Errorf("unsupported policy fact argument type %T", value)
	}
}
