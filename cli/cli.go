// Package cli provides the line-oriented REPL for the questscript
// engine: loading scripts, simulating players and explaining parses.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/questscript/engine"
	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/types"
)

// CLI handles terminal interaction with the user.
type CLI struct {
	Engine     *engine.Engine
	In         io.Reader
	Out        io.Writer
	ScriptsDir string
	Trace      bool
	EchoInput  bool   // echo each input line after the prompt (for script playback)
	lastCmd    string // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine, scriptsDir string) *CLI {
	return &CLI{
		Engine:     eng,
		In:         os.Stdin,
		Out:        os.Stdout,
		ScriptsDir: scriptsDir,
	}
}

// Run loops: prompt → input → dispatch → output, until /quit or the end
// of input.
func (c *CLI) Run() {
	c.printSystem("questscript ready. Type /help for commands.")

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for playback files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		if c.Exec(input) {
			return // /quit
		}
	}
}

// Exec runs one input line. It returns true when the REPL should exit.
func (c *CLI) Exec(input string) bool {
	if !strings.HasPrefix(input, "/") {
		// "Steve: hello" is a chat message from Steve.
		name, msg, ok := strings.Cut(input, ":")
		if !ok || strings.ContainsAny(strings.TrimSpace(name), " \t") || strings.TrimSpace(name) == "" {
			c.printSystem("Say something as a player with 'name: message', or type /help.")
			return false
		}
		res, err := c.Engine.Chat(strings.TrimSpace(name), strings.TrimSpace(msg))
		c.printOutcome(res, err)
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true
	case "/help":
		c.cmdHelp()
	case "/load":
		c.cmdLoad(rest)
	case "/reload":
		c.requireArg(rest, "/reload <script>", func() {
			diags, err := c.Engine.Reload(rest)
			c.printLoad(diags, err, "Reloaded "+rest+".")
		})
	case "/unload":
		c.requireArg(rest, "/unload <script>", func() {
			diags, ok := c.Engine.Unload(rest)
			if !ok {
				c.printSystem(fmt.Sprintf("No script named %s.", rest))
				return
			}
			c.printDiagnostics(diags)
			c.printSystem(fmt.Sprintf("Unloaded %s.", rest))
		})
	case "/scripts":
		c.cmdScripts()
	case "/join":
		c.requireArg(rest, "/join <player> [world]", func() {
			name, world, _ := strings.Cut(rest, " ")
			res, err := c.Engine.Join(name, strings.TrimSpace(world))
			c.printOutcome(res, err)
		})
	case "/leave":
		c.requireArg(rest, "/leave <player>", func() {
			res, err := c.Engine.Quit(rest)
			c.printOutcome(res, err)
		})
	case "/spawn":
		c.requireArg(rest, "/spawn <id> [kind]", func() {
			id, kind, _ := strings.Cut(rest, " ")
			if kind = strings.TrimSpace(kind); kind == "" {
				kind = id
			}
			if _, err := c.Engine.Spawn(id, kind, "", true); err != nil {
				c.printSystem(err.Error())
				return
			}
			c.printSystem(fmt.Sprintf("Spawned %s.", id))
		})
	case "/fire":
		c.requireArg(rest, "/fire <event>", func() {
			c.printOutcome(c.Engine.Fire(types.Event{Type: strings.ToLower(rest)}), nil)
		})
	case "/tick":
		c.cmdTick(rest)
	case "/explain":
		c.cmdExplain(rest)
	case "/syntax":
		c.cmdSyntax(rest)
	case "/functions":
		for _, f := range c.Engine.Functions() {
			c.printLine("  " + f)
		}
	case "/vars":
		c.cmdVars()
	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}
	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

func (c *CLI) requireArg(arg, usage string, fn func()) {
	if arg == "" {
		c.printSystem("Usage: " + usage)
		return
	}
	fn()
}

func (c *CLI) cmdLoad(path string) {
	if path == "" {
		path = c.ScriptsDir
	}
	fi, err := os.Stat(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	var diags []types.Diagnostic
	if fi.IsDir() {
		diags, err = c.Engine.LoadDir(path)
	} else {
		diags, err = c.Engine.LoadFile(path)
	}
	c.printLoad(diags, err, fmt.Sprintf("Loaded %s (%d scripts).", path, len(c.Engine.Scripts())))
}

func (c *CLI) cmdScripts() {
	names := c.Engine.Scripts()
	if len(names) == 0 {
		c.printSystem("No scripts loaded.")
		return
	}
	for _, name := range names {
		s, _ := c.Engine.Script(name)
		c.printLine(fmt.Sprintf("  %s: %d triggers, %d functions, %d errors",
			name, len(s.Triggers), len(s.Functions), s.Errors()))
	}
}

func (c *CLI) cmdTick(arg string) {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			c.printSystem("Usage: /tick [count]")
			return
		}
		n = v
	}
	res := c.Engine.Tick(n)
	c.printOutcome(res, nil)
	c.printSystem(fmt.Sprintf("Tick %d, %d waiting.", c.Engine.World().Ticks, c.Engine.Pending()))
}

// Commands lists the REPL commands, for completion.
var Commands = []string{
	"/load", "/reload", "/unload", "/scripts",
	"/join", "/leave", "/spawn", "/fire", "/tick", "/vars",
	"/explain", "/syntax", "/functions",
	"/trace", "/help", "/quit",
}

var categories = []types.Category{
	types.CategoryEffect, types.CategoryCondition, types.CategoryExpression,
	types.CategoryEvent, types.CategorySection,
}

func (c *CLI) cmdExplain(arg string) {
	word, text, _ := strings.Cut(arg, " ")
	cat := types.Category(strings.ToLower(word))
	known := false
	for _, k := range categories {
		known = known || k == cat
	}
	if !known || strings.TrimSpace(text) == "" {
		c.printSystem("Usage: /explain <effect|condition|expression|event|section> <text>")
		return
	}
	m, diags, err := c.Engine.Explain(strings.TrimSpace(text), cat)
	if err != nil {
		c.printSystem(err.Error())
		return
	}
	for _, line := range DescribeMatch(m) {
		c.printLine(line)
	}
	c.printDiagnostics(diags)
}

// DescribeMatch renders a match for display, one line per fact.
func DescribeMatch(m *syntax.Match) []string {
	if m == nil {
		return []string{"no match"}
	}
	if m.Info == nil {
		return []string{"function call: " + m.Element.String()}
	}
	out := []string{
		fmt.Sprintf("%s %q", m.Info.Category, m.Info.Name),
		fmt.Sprintf("  pattern %d: %s", m.Pattern, m.Info.Patterns[m.Pattern]),
		fmt.Sprintf("  mark: %d", m.Mark),
	}
	for i, x := range m.Exprs {
		if x == nil {
			out = append(out, fmt.Sprintf("  %%%d%%: <none>", i+1))
			continue
		}
		plural := ""
		if !x.IsSingle() {
			plural = "s"
		}
		out = append(out, fmt.Sprintf("  %%%d%%: %s (%s%s)", i+1, x.String(), x.ReturnType(), plural))
	}
	for i, r := range m.Regexes {
		out = append(out, fmt.Sprintf("  <regex %d>: %q", i+1, r.Text))
	}
	return out
}

func (c *CLI) cmdSyntax(filter string) {
	filter = strings.ToLower(filter)
	for _, line := range c.Engine.Syntax() {
		if filter == "" || strings.Contains(strings.ToLower(line), filter) {
			c.printLine("  " + line)
		}
	}
}

func (c *CLI) cmdVars() {
	vars := c.Engine.World().Vars
	if len(vars) == 0 {
		c.printSystem("No variables set.")
		return
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	classes := c.Engine.Classes()
	for _, k := range names {
		c.printLine(fmt.Sprintf("  {%s} = %s", k, classes.ToString(vars[k])))
	}
}

func (c *CLI) cmdHelp() {
	help := []string{
		"Scripts:",
		"  /load [path]         Load a script file or directory (default: scripts dir)",
		"  /reload <script>     Reload a script from disk",
		"  /unload <script>     Unload a script",
		"  /scripts             List loaded scripts",
		"",
		"World:",
		"  /join <player> [world]  A player joins",
		"  /leave <player>         A player quits",
		"  <player>: <message>     A player chats",
		"  /spawn <id> [kind]      Add a living entity",
		"  /fire <event>           Fire an event without data",
		"  /tick [count]           Advance the clock",
		"  /vars                   Show variables",
		"",
		"Syntax:",
		"  /explain <category> <text>  Show how a line parses",
		"  /syntax [filter]            List registered syntax",
		"  /functions                  List functions",
		"",
		"  /trace  Toggle event trace output",
		"  /quit   Exit",
		"  again (g) repeats the last line",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printLoad(diags []types.Diagnostic, err error, ok string) {
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.printDiagnostics(diags)
	c.printSystem(ok)
}

// FormatDiagnostic renders a diagnostic as "file:line: severity: message".
func FormatDiagnostic(d types.Diagnostic) string {
	sev := "warning"
	if d.Severity == types.SeverityError {
		sev = "error"
	}
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, sev, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, sev, d.Message)
}

func (c *CLI) printDiagnostics(diags []types.Diagnostic) {
	for _, d := range diags {
		c.printLine(FormatDiagnostic(d))
		if d.Text != "" {
			c.printLine("    " + d.Text)
		}
	}
}

func (c *CLI) printOutcome(res types.Result, err error) {
	if err != nil {
		c.printSystem(err.Error())
		return
	}
	for _, line := range res.Output {
		c.printLine(line)
	}
	for _, e := range res.Errors {
		c.printSystem("error: " + e)
	}
	if c.Trace {
		c.printTrace(res)
	}
}

func (c *CLI) printTrace(result types.Result) {
	if len(result.Events) > 0 {
		c.printLine(fmt.Sprintf("[trace] Events: %d", len(result.Events)))
		for _, e := range result.Events {
			c.printLine(fmt.Sprintf("[trace]   %s", e.Type))
		}
	}
	c.printLine(fmt.Sprintf("[trace] Waiting: %d", c.Engine.Pending()))
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
