package code

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kylelemons/godebug/diff"
	"github.com/pkg/errors"
)

// CodeObject is an ordered sequence of instructions for one function:
// its name, parameter names, and body. A code object is owned by exactly
// one function value and is immutable after compilation.
type CodeObject struct {
	Name   string
	Params []string
	Body   []Instruction
}

// ErrDuplicateLabel is returned by [CodeObject.Labels] when the same
// label name occurs more than once in a code object.
var ErrDuplicateLabel = errors.New("duplicate label")

// ErrMissingLabel is returned when a branch/for_iter instruction
// references a label absent from the code object — label well-formedness,
// checked both for compiler output and evaluator output.
var ErrMissingLabel = errors.New("undefined label")

// Labels builds the label→index map for c's body, failing if any label
// name is defined more than once.
func (c *CodeObject) Labels() (map[string]int, error) {
	labels := make(map[string]int)
	for i, ins := range c.Body {
		if ins.Op != OpLabel {
			continue
		}
		name, _ := ins.Label(0)
		if _, dup := labels[name]; dup {
			return nil, errors.Wrapf(ErrDuplicateLabel, "%q", name)
		}
		labels[name] = i
	}
	return labels, nil
}

// CheckLabels verifies that every label referenced by a branch/for_iter
// instruction occurs exactly once as a label instruction in c — the
// label well-formedness invariant.
func (c *CodeObject) CheckLabels() error {
	labels, err := c.Labels()
	if err != nil {
		return err
	}
	for _, ins := range c.Body {
		positions, ok := labelArgPositions[ins.Op]
		if !ok || ins.Op == OpLabel {
			continue
		}
		for _, pos := range positions {
			name, ok := ins.Label(pos)
			if !ok {
				continue
			}
			if _, found := labels[name]; !found {
				return errors.Wrapf(ErrMissingLabel, "%q referenced by %s", name, ins.Op)
			}
		}
	}
	return nil
}

// Dump renders c as indented text: label lines as "name:", every other
// instruction indented four spaces with operands space-joined. This is
// the textual form the structural-equality tests compare against, after
// dedenting and trimming.
func (c *CodeObject) Dump() string {
	var out strings.Builder
	for _, ins := range c.Body {
		if ins.Op == OpLabel {
			name, _ := ins.Label(0)
			out.WriteString(name + ":\n")
			continue
		}
		out.WriteString("    " + ins.String() + "\n")
	}
	return out.String()
}

// dumpColor renders c like [CodeObject.Dump] but with label lines
// highlighted, for interactive REPL inspection (`:dump`).
func (c *CodeObject) dumpColor() string {
	labelStyle := lipgloss.NewStyle().Bold(true)
	var out strings.Builder
	for _, ins := range c.Body {
		if ins.Op == OpLabel {
			name, _ := ins.Label(0)
			out.WriteString(labelStyle.Render(name+":") + "\n")
			continue
		}
		out.WriteString("    " + ins.String() + "\n")
	}
	return out.String()
}

// DumpColor is Dump with ANSI label highlighting, used by the REPL's
// `:dump` command.
func (c *CodeObject) DumpColor() string { return c.dumpColor() }

// pp renders c with a `def name(params):` header above its [Dump], matching
// the original source's pretty-printer.
func (c *CodeObject) pp() string {
	return "def " + c.Name + "(" + strings.Join(c.Params, ", ") + "):\n" + c.Dump()
}

// Pp is the exported form of [CodeObject.pp].
func (c *CodeObject) Pp() string { return c.pp() }

// Equals reports whether c's dumped text equals want after both are
// dedented and trimmed line by line. On mismatch, diff is the unified
// structural diff between the two texts, suitable for a test failure
// message.
func (c *CodeObject) Equals(want string) (ok bool, diffText string) {
	got := dedentTrim(c.Dump())
	wantNorm := dedentTrim(want)
	if got == wantNorm {
		return true, ""
	}
	return false, diff.Diff(wantNorm, got)
}

// dedentTrim removes a common leading-whitespace prefix from every
// non-blank line, trims the whitespace around each line, and trims
// leading/trailing blank lines, so that Go source-embedded expected-output
// strings (which carry the indentation of the surrounding test function)
// compare equal to [CodeObject.Dump]'s output, whose label lines are flush
// left and whose other lines are indented.
func dedentTrim(s string) string {
	lines := strings.Split(s, "\n")

	minIndent := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent > 0 {
		for i, line := range lines {
			if len(line) >= minIndent {
				lines[i] = line[minIndent:]
			} else {
				lines[i] = strings.TrimLeft(line, " \t")
			}
		}
	}
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
