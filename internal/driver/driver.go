// Package driver wires the pipeline stages together as ordinary Go
// function calls over a shared AST, the library-call surface spec.md §6
// asks for in place of the teacher's five-binary pipe chain (lang/ya's
// runPipeline spawns ylex/yparse/ysem/ygen/ypeep as separate processes
// joined by stdin/stdout; here every stage is an in-process package
// call passing *ast.Program directly).
package driver

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/codegen"
	"github.com/avwohl/ucow/internal/diag"
	"github.com/avwohl/ucow/internal/lexer"
	"github.com/avwohl/ucow/internal/optimize"
	"github.com/avwohl/ucow/internal/parser"
	"github.com/avwohl/ucow/internal/peephole"
	"github.com/avwohl/ucow/internal/sem"
)

// Options configures one compilation, passed explicitly end to end
// rather than through package-level state, per spec.md §5's no-ambient-
// mutable-state rule.
type Options struct {
	SourcePath  string
	IncludeDirs []string
	OutputPath  string
	Optimize    bool
	Debug       bool // log the optimizer's per-pass change log
	Logger      *zap.Logger
}

// Result is the outcome of one compilation: either OK with the
// generated assembly written to Options.OutputPath, or not OK with
// Diagnostics explaining why. InternalErr is set instead of Diagnostics
// when a pipeline stage panicked with a diag.InternalError, kept on its
// own field so a caller can tell "your program has a bug" apart from
// "the compiler has a bug" at a glance, matching spec.md §7's separate-
// channel requirement.
type Result struct {
	OK          bool
	Diagnostics []diag.Diagnostic
	InternalErr error
}

// Compile runs Preprocessor -> Lexer -> Parser -> Sem -> Optimizer ->
// Codegen -> Peephole over a single source file and writes the
// resulting assembly text to opts.OutputPath.
func Compile(opts Options) (result Result) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*diag.InternalError); ok {
				result = Result{InternalErr: errors.WithStack(ie)}
				return
			}
			result = Result{InternalErr: errors.Errorf("internal error: %v", r)}
		}
	}()

	log.Debug("preprocessing", zap.String("source", opts.SourcePath))
	pp := lexer.NewPreprocessor(opts.IncludeDirs)
	src, err := pp.Expand(opts.SourcePath)
	if err != nil {
		return Result{Diagnostics: []diag.Diagnostic{{Kind: diag.Lex, Msg: err.Error()}}}
	}

	sink := diag.NewSink()

	log.Debug("lexing")
	lx := lexer.New(src, sink)
	toks := lx.Tokens()
	if sink.HasErrors() {
		return Result{Diagnostics: sink.Diagnostics()}
	}

	log.Debug("parsing")
	ps := parser.New(toks, sink)
	prog := ps.Parse()
	if sink.HasErrors() {
		return Result{Diagnostics: sink.Diagnostics()}
	}

	log.Debug("analyzing")
	analyzer := sem.New(prog, sink)
	analyzer.Analyze()
	if sink.HasErrors() {
		return Result{Diagnostics: sink.Diagnostics()}
	}

	if opts.Optimize {
		log.Debug("optimizing")
		var logFn func(round int, pass string)
		if opts.Debug {
			logFn = func(round int, pass string) {
				log.Info("optimizer pass changed program", zap.Int("round", round), zap.String("pass", pass))
			}
		}
		rounds := optimize.RunWithLog(prog, logFn)
		log.Debug("optimizer converged", zap.Int("rounds", rounds))
	}

	log.Debug("generating code")
	asmText, err := generate(prog, analyzer)
	if err != nil {
		return Result{Diagnostics: []diag.Diagnostic{{Kind: diag.Semantic, Msg: err.Error()}}}
	}

	if opts.Optimize {
		log.Debug("running peephole pass")
		asmText = runPeephole(asmText)
	}

	if err := os.WriteFile(opts.OutputPath, []byte(asmText), 0644); err != nil {
		return Result{InternalErr: errors.Wrapf(err, "writing output %s", opts.OutputPath)}
	}

	return Result{OK: true}
}

// generate drives the code generator and returns the diagnostics the
// generator reported to its own sink as an ordinary error. It does not
// recover panics: a diag.Bug raised during generation unwinds to
// Compile's deferred recover and becomes Result.InternalErr.
func generate(prog *ast.Program, analyzer *sem.Analyzer) (asm string, err error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	e := codegen.NewEmitter(w)
	sink := diag.NewSink()
	g := codegen.New(e, analyzer.Subs(), sink)
	g.Generate(prog)
	e.Flush()
	if sink.HasErrors() {
		var msgs []string
		for _, d := range sink.Diagnostics() {
			msgs = append(msgs, d.String())
		}
		return "", fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return buf.String(), nil
}

func runPeephole(asmText string) string {
	lines := peephole.ParseAll(strings.Split(asmText, "\n"))
	peephole.Optimize(lines)
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	peephole.WriteAll(w, lines)
	w.Flush()
	return out.String()
}
