// Package repl implements the interactive loop spec.md §9 describes: a
// persistent module frame that every line grows, an incremental compile
// entry point per line, and the previously-reified base frame as a GC
// root so values a line binds survive into later lines.
//
// Grounded on internal/repl/repl.go's loop shape (bufio.Scanner over
// os.Stdin, a ">>> " prompt, "exit" to quit) but generalized: the teacher
// recompiles a fresh chunk from scratch on every line and discards it,
// this one keeps one compiler and one frame alive across the whole
// session and grows both by the line's instructions.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"quill/internal/compiler"
	"quill/internal/diag"
	"quill/internal/lexer"
	"quill/internal/natives"
	"quill/internal/parser"
	"quill/internal/vm"
)

const prompt = ">>> "

// Session holds the state that persists across lines: one compiler
// growing one module, one VM, and the frame the module's top level runs
// in (spec.md §9 "REPL state: persistent module frame").
type Session struct {
	comp *compiler.Compiler
	vm   *vm.VM
	fr   *vm.Frame

	out io.Writer
}

// New starts a REPL session. importer may be nil if the host does not
// support import() from REPL input.
func New(reg *natives.Registry, importer vm.Importer, out io.Writer) (*Session, error) {
	names := reg.Names()
	comp := compiler.NewRepl("<repl>", names)
	machine := vm.New(comp.Module(), reg.Map(), importer)
	fr, err := machine.NewReplFrame()
	if err != nil {
		return nil, err
	}
	return &Session{comp: comp, vm: machine, fr: fr, out: out}, nil
}

// Eval compiles and runs one line of input against the session's
// persistent frame, returning its display string (empty if the line
// produced no value, e.g. a bare `let`).
func (s *Session) Eval(line string) (string, error) {
	toks, err := lexer.Scan(line)
	if err != nil {
		return "", diag.FromError("<repl>", line, nil, err)
	}
	p := parser.New(toks)
	stmts := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return "", diag.FromError("<repl>", line, toks, errs[0])
	}

	from, to, valueRef, hasValue, err := s.comp.Continue(stmts)
	if err != nil {
		return "", diag.FromError("<repl>", line, toks, err)
	}

	s.fr.Grow(s.comp.InstrsSince(from, to))
	result, err := s.vm.Resume(s.fr, from)
	if err != nil {
		return "", diag.FromError("<repl>", line, toks, err)
	}
	if !hasValue {
		return "", nil
	}
	_ = valueRef // the frame already holds the value at its result register; Resume returns it directly
	return s.vm.Display(result), nil
}

// Run drives a full interactive session over in, writing prompts and
// results to out, until "exit" or EOF.
func Run(reg *natives.Registry, importer vm.Importer, in io.Reader, out io.Writer) error {
	sess, err := New(reg, importer, out)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}
		display, err := sess.Eval(line)
		if err != nil {
			fmt.Fprintln(out, err.Error())
			continue
		}
		if display != "" {
			fmt.Fprintln(out, display)
		}
	}
}
