package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

// Report is the outcome of validating emitted source text.
type Report struct {
	Valid  bool
	Errors []string
}

// Names the runtime provides to generated code; references to these are
// never "undeclared".
var runtimeBuiltins = map[string]bool{
	"invoke":           true,
	"register_trigger": true,
	"state":            true,
	"dict":             true,
	"max":              true,
	"min":              true,
	"NotImplementedError": true,
	"None":             true,
	"True":             true,
	"False":            true,
}

var (
	defRe        = regexp.MustCompile(`^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	assignRe     = regexp.MustCompile(`^([A-Z][A-Z0-9_]*)\s*=`)
	returnRefRe  = regexp.MustCompile(`return\s+"([A-Za-z_][A-Za-z0-9_]*)"`)
	entryRefRe   = regexp.MustCompile(`^ENTRY_POINT\s*=\s*"([A-Za-z_][A-Za-z0-9_]*)"`)
	triggerRefRe = regexp.MustCompile(`entry="([A-Za-z_][A-Za-z0-9_]*)"`)
)

// Validate re-parses compiled source: bracket balance, well-formed
// handler definitions, duplicate definitions, and control-transfer
// references that name no declared handler. It knows nothing about graph
// structure; run graph.ValidateStructure for shape checks.
func Validate(source string) Report {
	report := Report{Valid: true}

	if err := checkBalance(source); err != nil {
		report.fail(err.Error())
	}

	handlers := make(map[string]bool)
	constants := make(map[string]bool)
	type ref struct {
		name string
		line int
	}
	var refs []ref

	lines := strings.Split(source, "\n")
	var currentDef string
	var defBodyLines int
	closeDef := func(lineNo int) {
		if currentDef != "" && defBodyLines == 0 {
			report.fail(fmt.Sprintf("line %d: handler %q has an empty body", lineNo, currentDef))
		}
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := defRe.FindStringSubmatch(line); m != nil {
			closeDef(i)
			name := m[1]
			if handlers[name] {
				report.fail(fmt.Sprintf("line %d: duplicate handler definition %q", i+1, name))
			}
			handlers[name] = true
			currentDef = name
			defBodyLines = 0
			if !strings.HasSuffix(strings.TrimRight(line, " "), ":") {
				report.fail(fmt.Sprintf("line %d: malformed handler definition %q", i+1, name))
			}
			continue
		}

		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if currentDef != "" {
				defBodyLines++
			}
		} else {
			closeDef(i)
			currentDef = ""
			if m := assignRe.FindStringSubmatch(line); m != nil {
				constants[m[1]] = true
			}
		}

		for _, m := range returnRefRe.FindAllStringSubmatch(line, -1) {
			refs = append(refs, ref{m[1], i + 1})
		}
		if m := entryRefRe.FindStringSubmatch(line); m != nil {
			refs = append(refs, ref{m[1], i + 1})
		}
		for _, m := range triggerRefRe.FindAllStringSubmatch(line, -1) {
			refs = append(refs, ref{m[1], i + 1})
		}
	}
	closeDef(len(lines))

	for _, r := range refs {
		if handlers[r.name] || constants[r.name] || runtimeBuiltins[r.name] {
			continue
		}
		report.fail(fmt.Sprintf("line %d: reference to undeclared handler %q", r.line, r.name))
	}

	return report
}

// checkBalance scans for unbalanced brackets outside string literals.
// Emitted code only uses double-quoted and triple-double-quoted strings.
func checkBalance(source string) error {
	var depth [3]int // ( [ {
	inString := false
	inDocstring := false

	for i := 0; i < len(source); i++ {
		if inDocstring {
			if strings.HasPrefix(source[i:], `"""`) {
				inDocstring = false
				i += 2
			}
			continue
		}
		if inString {
			switch source[i] {
			case '\\':
				i++
			case '"', '\n':
				inString = false
			}
			continue
		}
		switch {
		case strings.HasPrefix(source[i:], `"""`):
			inDocstring = true
			i += 2
		case source[i] == '"':
			inString = true
		case source[i] == '(':
			depth[0]++
		case source[i] == ')':
			depth[0]--
		case source[i] == '[':
			depth[1]++
		case source[i] == ']':
			depth[1]--
		case source[i] == '{':
			depth[2]++
		case source[i] == '}':
			depth[2]--
		}
		for _, d := range depth {
			if d < 0 {
				return fmt.Errorf("unbalanced brackets in generated source")
			}
		}
	}
	if inDocstring {
		return fmt.Errorf("unterminated docstring in generated source")
	}
	if depth != [3]int{} {
		return fmt.Errorf("unbalanced brackets in generated source")
	}
	return nil
}

func (r *Report) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}
