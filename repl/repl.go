// Package repl implements the Read-Eval-Print Loop for the toy language
// compiled and run by this module.
//
// Like the teacher's REPL, it uses the Charm libraries (Bubbletea, Bubbles,
// and Lipgloss) to build an interactive terminal interface with styled
// output and a persistent environment across inputs. Unlike a conventional
// expression REPL, this language's only top-level construct is a function
// definition, so the REPL keeps growing a single source buffer: entering a
// `def` block adds to it, and entering anything else evaluates it as the
// body of a synthetic entry function compiled against every definition
// seen so far.
//
// Two extra commands expose the partial evaluator:
//   - :peval <name> shows a unified diff between a function's original and
//     rainbow-evaluated bytecode dumps.
//   - :dump <name> prints a function's colorized bytecode dump.
//
// The main entry point is the Start function.
package repl

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kylelemons/godebug/diff"

	"github.com/dr8co/rainbow/compiler"
	"github.com/dr8co/rainbow/lexer"
	"github.com/dr8co/rainbow/object"
	"github.com/dr8co/rainbow/parser"
	"github.com/dr8co/rainbow/rainbow"
)

const (
	// Prompt is the default prompt for the REPL.
	Prompt = ">> "

	// ContPrompt is the continuation prompt used while a def block is
	// still being entered.
	ContPrompt = ".. "
)

// Options configures the REPL.
type Options struct {
	NoColor bool // Disable colored output
	Debug   bool // Not read by the REPL; setting it changes nothing
}

// Start initializes and runs the REPL. If an error occurs while running
// the program, it is printed to the console.
func Start(in io.Reader, out io.Writer, options Options) {
	p := tea.NewProgram(initialModel(options), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(out, "Error running program:", err)
	}
}

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	parseErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF8700")).
				Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	diffAddStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	diffDelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

// ErrorType classifies a history entry's failure, if any.
type ErrorType int

const (
	NoError ErrorType = iota
	ParseError
	RuntimeError
)

// evalResultMsg is delivered once background evaluation completes.
type evalResultMsg struct {
	output    string
	isError   bool
	errorType ErrorType
	elapsed   time.Duration
}

// historyEntry is one completed input/output pair.
type historyEntry struct {
	input          string
	output         string
	isError        bool
	errorType      ErrorType
	evaluationTime time.Duration
}

// model is the REPL's Bubbletea state.
type model struct {
	textInput textinput.Model
	spinner   spinner.Model
	history   []historyEntry
	options   Options

	// source is every `def` block entered so far, successfully parsed and
	// compiled. It is recompiled as a whole each time it grows, which keeps
	// later functions visible to closures captured by earlier ones exactly
	// as a script file's functions are (compiler.Compile's module-wide
	// closure semantics).
	source string

	evaluating   bool
	currentInput string
	buffer       []string // lines accumulated for a multi-line def
	inBlock      bool
}

func initialModel(options Options) model {
	ti := textinput.New()
	ti.Placeholder = "def main(): ..."
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{textInput: ti, spinner: s, options: options}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

// looksLikeDef reports whether the first line of input starts a function
// definition, possibly preceded by a `@green` decorator.
func looksLikeDef(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "def ") || strings.HasPrefix(t, "@green")
}

// evalCmd runs one submitted block asynchronously: a `:peval`/`:dump`
// command, a new function definition (folded into m.source), or an
// ordinary statement (run once, against m.source, as a synthetic entry
// function).
func evalCmd(input, source string, options Options) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		var output string
		isError := false
		errorType := NoError

		switch {
		case strings.HasPrefix(strings.TrimSpace(input), ":peval "):
			name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":peval "))
			output, isError, errorType = cmdPeval(source, name, options)

		case strings.HasPrefix(strings.TrimSpace(input), ":dump "):
			name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":dump "))
			output, isError, errorType = cmdDump(source, name, options)

		case looksLikeDef(input):
			output, isError, errorType = evalDef(source, input)

		default:
			output, isError, errorType = evalStmt(source, input)
		}

		return evalResultMsg{output: output, isError: isError, errorType: errorType, elapsed: time.Since(start)}
	}
}

func compileSource(source string) (*object.Module, []string, error) {
	l := lexer.New(source)
	p := parser.New(l)
	mod := p.ParseModule()
	if len(p.Errors()) != 0 {
		return nil, p.Errors(), nil
	}
	runtimeMod, err := compiler.Compile(mod)
	return runtimeMod, nil, err
}

// evalDef appends input to source, recompiles the whole accumulated
// buffer, and reports success. The caller only commits the grown source
// into the model once this returns without error.
func evalDef(source, input string) (output string, isError bool, errorType ErrorType) {
	grown := strings.TrimRight(source, "\n") + "\n\n" + input + "\n"
	_, parseErrs, err := compileSource(grown)
	if len(parseErrs) != 0 {
		return formatParseErrors(parseErrs), true, ParseError
	}
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	return "ok", false, NoError
}

// evalStmt wraps input as the body of a synthetic entry function compiled
// alongside source, runs it, and reports its result (or nothing, if the
// input has no trailing value).
func evalStmt(source, input string) (output string, isError bool, errorType ErrorType) {
	body := input
	trimmed := strings.TrimSpace(input)
	isKeywordLine := strings.HasPrefix(trimmed, "if ") || strings.HasPrefix(trimmed, "for ") ||
		strings.HasPrefix(trimmed, "return") || strings.HasPrefix(trimmed, "pass") ||
		strings.Contains(trimmed, "=") && !strings.Contains(trimmed, "==")
	if !isKeywordLine {
		body = "return (" + input + ")"
	}

	synthetic := strings.TrimRight(source, "\n") + "\n\ndef __repl__():\n    " +
		strings.ReplaceAll(body, "\n", "\n    ") + "\n"

	runtimeMod, parseErrs, err := compileSource(synthetic)
	if len(parseErrs) != 0 {
		return formatParseErrors(parseErrs), true, ParseError
	}
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}

	fn, err := runtimeMod.Lookup("__repl__")
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	result, err := fn.(*object.Function).Call()
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	if result == object.None {
		return "", false, NoError
	}
	return result.Inspect(), false, NoError
}

func cmdDump(source, name string, options Options) (output string, isError bool, errorType ErrorType) {
	runtimeMod, parseErrs, err := compileSource(source)
	if len(parseErrs) != 0 {
		return formatParseErrors(parseErrs), true, ParseError
	}
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	fn, err := lookupFunc(runtimeMod, name)
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	if options.NoColor {
		return fn.Code.Dump(), false, NoError
	}
	return fn.Code.DumpColor(), false, NoError
}

func cmdPeval(source, name string, options Options) (output string, isError bool, errorType ErrorType) {
	runtimeMod, parseErrs, err := compileSource(source)
	if len(parseErrs) != 0 {
		return formatParseErrors(parseErrs), true, ParseError
	}
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	fn, err := lookupFunc(runtimeMod, name)
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}
	evaluated, err := rainbow.Peval(fn)
	if err != nil {
		return formatRuntimeError(err.Error()), true, RuntimeError
	}

	before, after := fn.Code.Dump(), evaluated.Code.Dump()
	d := diff.Diff(before, after)
	if options.NoColor {
		return d, false, NoError
	}
	return colorizeDiff(d), false, NoError
}

func lookupFunc(mod *object.Module, name string) (*object.Function, error) {
	v, err := mod.Lookup(name)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(*object.Function)
	if !ok {
		return nil, fmt.Errorf("%q is not a function", name)
	}
	return fn, nil
}

// colorizeDiff renders a unified diff's +/- lines in diffAddStyle/diffDelStyle.
func colorizeDiff(d string) string {
	lines := strings.Split(d, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+"):
			lines[i] = diffAddStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = diffDelStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// Update handles all updates to the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		m.evaluating = false
		wasDef := looksLikeDef(m.currentInput)
		if wasDef && !msg.isError {
			m.source = strings.TrimRight(m.source, "\n") + "\n\n" + m.currentInput + "\n"
		}
		m.history = append(m.history, historyEntry{
			input: m.currentInput, output: msg.output, isError: msg.isError,
			errorType: msg.errorType, evaluationTime: msg.elapsed,
		})
		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		if m.evaluating && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.textInput.Value()

			if m.inBlock {
				if line == "" {
					input := strings.Join(m.buffer, "\n")
					m.buffer = nil
					m.inBlock = false
					m.textInput.SetValue("")
					m.evaluating = true
					m.currentInput = input
					return m, evalCmd(input, m.source, m.options)
				}
				m.buffer = append(m.buffer, line)
				m.textInput.SetValue("")
				return m, nil
			}

			if line == "" {
				return m, nil
			}
			if looksLikeDef(line) {
				m.buffer = []string{line}
				m.inBlock = true
				m.textInput.SetValue("")
				return m, nil
			}

			m.textInput.SetValue("")
			m.evaluating = true
			m.currentInput = line
			return m, evalCmd(line, m.source, m.options)
		}
	}

	if !m.evaluating {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	if m.evaluating {
		return m, m.spinner.Tick
	}
	return m, cmd
}

// View renders the current UI.
func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " rainbow REPL "))
	s.WriteString("\n\n")

	for _, entry := range m.history {
		lines := strings.Split(entry.input, "\n")
		for i, line := range lines {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(line)
			s.WriteString("\n")
		}

		if entry.isError {
			style := errorStyle
			if entry.errorType == ParseError {
				style = parseErrorStyle
			} else if entry.errorType == RuntimeError {
				style = runtimeErrorStyle
			}
			s.WriteString(m.applyStyle(style, entry.output))
		} else if entry.output != "" {
			s.WriteString(m.applyStyle(resultStyle, entry.output))
		}

		if entry.evaluationTime > 10*time.Millisecond {
			s.WriteString(m.applyStyle(historyStyle, fmt.Sprintf(" (%.2fs)", entry.evaluationTime.Seconds())))
		}
		s.WriteString("\n\n")
	}

	if m.evaluating {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.currentInput)
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Evaluating...\n\n")
	}

	if m.inBlock && !m.evaluating {
		s.WriteString(m.applyStyle(historyStyle, "Current block:\n"))
		for _, line := range m.buffer {
			s.WriteString(line)
			s.WriteString("\n")
		}
	}

	if !m.evaluating {
		if m.inBlock {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	help := "\nEsc/Ctrl+C/Ctrl+D to exit | :peval <fn> and :dump <fn> inspect a function"
	if m.inBlock {
		help = "\nEnter an empty line to finish this def block" + help
	}
	s.WriteString(m.applyStyle(historyStyle, help))

	return s.String()
}

func formatParseErrors(errs []string) string {
	var s strings.Builder
	s.WriteString("Parser Errors:\n")
	for i, msg := range errs {
		fmt.Fprintf(&s, "  %d. %s\n", i+1, msg)
	}
	return s.String()
}

func formatRuntimeError(msg string) string {
	return "Runtime Error:\n  " + msg + "\n"
}
