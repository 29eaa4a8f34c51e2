package rule

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fwojciec/folio"
	"github.com/ohler55/ojg/jp"
)

// Rule syntax markers.
const (
	altSeparator    = "||"
	stepSeparator   = "@"
	filterSeparator = "##"
	scriptMarker    = "@js:"
)

type stepKind int

const (
	stepSelect stepKind = iota
	stepPath
	stepScript
)

type selectorKind int

const (
	selectTag selectorKind = iota
	selectClass
	selectID
	selectText
)

var selectorPrefixes = []struct {
	prefix string
	kind   selectorKind
}{
	{"class.", selectClass},
	{"id.", selectID},
	{"tag.", selectTag},
	{"text.", selectText},
}

// step is one '@'-separated segment of an alternative.
type step struct {
	kind     stepKind
	selector selectorKind
	name     string

	// bare is set for a segment written without a kind prefix. In string
	// mode a bare final segment is a terminal or an attribute name.
	bare     bool
	index    int
	hasIndex bool

	path   jp.Expr
	script string
}

type alternative struct {
	steps  []step
	filter *regexp.Regexp

	// err is set when the alternative cannot be parsed; evaluating it
	// fails without touching the document.
	err error
}

type program struct {
	alts []alternative
}

// compile parses a rule. Syntax errors are confined to the alternative
// they occur in.
func compile(rule string) *program {
	p := &program{}
	rest := rule
	for {
		alt, tail, more := cutAlternative(rest)
		p.alts = append(p.alts, parseAlternative(alt))
		if !more {
			return p
		}
		rest = tail
	}
}

// cutAlternative splits off the first alternative of s. Separators inside
// brackets or parentheses are ignored, and once a script step starts the
// remainder of the rule belongs to it.
func cutAlternative(s string) (alt, rest string, more bool) {
	sep := indexTopLevel(s, altSeparator)
	if sep < 0 {
		return s, "", false
	}
	if script := indexTopLevel(s, scriptMarker); script >= 0 && script < sep {
		return s, "", false
	}
	return s[:sep], s[sep+len(altSeparator):], true
}

// indexTopLevel returns the index of the first sep in s outside brackets
// and parentheses, or -1. A backslash escapes the byte after it. Past a
// top-level filter separator brackets belong to the pattern and are not
// counted.
func indexTopLevel(s, sep string) int {
	depth := 0
	filter := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if (depth == 0 || filter) && strings.HasPrefix(s[i:], sep) {
			return i
		}
		if filter {
			continue
		}
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && strings.HasPrefix(s[i:], filterSeparator) {
			filter = true
			i += len(filterSeparator) - 1
		}
	}
	return -1
}

func splitTopLevel(s, sep string) []string {
	var parts []string
	for {
		i := indexTopLevel(s, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+len(sep):]
	}
}

func parseAlternative(text string) alternative {
	var alt alternative

	var script string
	hasScript := false
	if strings.HasPrefix(text, scriptMarker[1:]) {
		script, hasScript, text = text[len(scriptMarker)-1:], true, ""
	} else if i := indexTopLevel(text, scriptMarker); i >= 0 {
		script, hasScript, text = text[i+len(scriptMarker):], true, text[:i]
	}

	if i := indexTopLevel(text, filterSeparator); i >= 0 {
		pattern := text[i+len(filterSeparator):]
		text = text[:i]
		re, err := regexp.Compile(pattern)
		if err != nil {
			alt.err = folio.Errorf(folio.EPARSE, "invalid filter %q: %v", pattern, err)
			return alt
		}
		alt.filter = re
	}

	for _, seg := range splitTopLevel(text, stepSeparator) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		s, err := parseStep(seg)
		if err != nil {
			alt.err = err
			return alt
		}
		alt.steps = append(alt.steps, s)
	}

	if hasScript {
		alt.steps = append(alt.steps, step{kind: stepScript, script: strings.TrimSpace(script)})
	}
	if len(alt.steps) == 0 {
		alt.err = folio.Errorf(folio.EPARSE, "empty rule")
	}
	return alt
}

func parseStep(seg string) (step, error) {
	if strings.HasPrefix(seg, "$") {
		x, err := jp.ParseString(seg)
		if err != nil {
			return step{}, folio.Errorf(folio.EPARSE, "invalid path %q: %v", seg, err)
		}
		return step{kind: stepPath, path: x, name: seg}, nil
	}

	s := step{kind: stepSelect, selector: selectTag, bare: true}
	body := seg
	for _, p := range selectorPrefixes {
		if strings.HasPrefix(seg, p.prefix) {
			s.selector, s.bare = p.kind, false
			body = seg[len(p.prefix):]
			break
		}
	}

	if i := strings.LastIndexByte(body, '.'); i > 0 {
		if n, err := strconv.Atoi(body[i+1:]); err == nil {
			s.index, s.hasIndex = n, true
			body = body[:i]
		}
	}
	if body == "" {
		return step{}, folio.Errorf(folio.EPARSE, "empty selector in %q", seg)
	}
	s.name = body
	return s, nil
}
