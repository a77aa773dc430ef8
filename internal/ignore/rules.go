package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Rule is one parsed ignore-file line. The pattern is compiled through the
// gitignore matcher; negation is tracked here because the matcher collapses
// "re-included by negation" and "never matched" into the same answer.
type Rule struct {
	// Pattern is the cleaned pattern text with any leading "!" removed.
	Pattern string
	// Negate re-includes a previously excluded path.
	Negate bool
	// DirOnly marks patterns with a trailing "/".
	DirOnly bool
	// AnchorDir is the slash-relative directory of the defining ignore file,
	// empty for an ignore file at the project root.
	AnchorDir string
	// Depth is the number of path segments in AnchorDir.
	Depth int

	matcher *gitignore.GitIgnore
}

// ParseError reports a malformed line in an ignore-pattern file.
type ParseError struct {
	File    string
	Line    int
	Pattern string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: invalid ignore pattern %q: %s", e.File, e.Line, e.Pattern, e.Reason)
}

// ParseRules reads ignore-file lines from r. Blank lines and "#" comments are
// skipped, "\#" and "\!" escape the leading markers, "!" negates, a trailing
// "/" restricts the rule to directories.
func ParseRules(r io.Reader, file string, anchorDir string, depth int) ([]Rule, error) {
	scanner := bufio.NewScanner(r)
	rules := make([]Rule, 0, 16)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		line = trimTrailingSpaces(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, `\#`) {
			line = line[1:]
		}

		negate := false
		if strings.HasPrefix(line, "!") {
			negate = true
			line = line[1:]
		} else if strings.HasPrefix(line, `\!`) {
			line = line[1:]
		}

		if strings.Trim(line, "/") == "" {
			return nil, &ParseError{File: file, Line: lineNo, Pattern: scanner.Text(), Reason: "empty pattern"}
		}
		if idx := unterminatedClass(line); idx >= 0 {
			return nil, &ParseError{File: file, Line: lineNo, Pattern: line, Reason: "unterminated character class"}
		}

		rules = append(rules, Rule{
			Pattern:   line,
			Negate:    negate,
			DirOnly:   strings.HasSuffix(line, "/"),
			AnchorDir: anchorDir,
			Depth:     depth,
			matcher:   compilePattern(line),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", file, err)
	}

	return rules, nil
}

// LoadRuleFile parses one on-disk ignore file scoped to anchorDir.
func LoadRuleFile(path string, anchorDir string, depth int) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRules(f, path, anchorDir, depth)
}

// compilePattern hands one pattern to the gitignore engine, papering over two
// engine quirks: a bare "?" is treated literally, so it is rewritten into a
// single-character class; and slash-containing patterns match at any depth,
// so they are anchored explicitly (a separator scopes the pattern to the
// directory of its ignore file).
func compilePattern(pattern string) *gitignore.GitIgnore {
	// Leading "#" and "!" were already unescaped during parsing; re-escape so
	// the engine does not read them as comment or negation markers.
	if strings.HasPrefix(pattern, "#") || strings.HasPrefix(pattern, "!") {
		pattern = `\` + pattern
	}
	if body := strings.TrimSuffix(pattern, "/"); strings.Contains(body, "/") && !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		pattern = "/" + pattern
	}
	if strings.ContainsRune(pattern, '?') {
		var b strings.Builder
		inClass := false
		for i := 0; i < len(pattern); i++ {
			c := pattern[i]
			if c == '\\' && i+1 < len(pattern) {
				b.WriteByte(c)
				i++
				b.WriteByte(pattern[i])
				continue
			}
			switch {
			case c == '[' && !inClass:
				inClass = true
				b.WriteByte(c)
			case c == ']' && inClass:
				// A "]" directly after the opening bracket (or a leading
				// "!"/"^") is a class member, not the terminator.
				inClass = pattern[i-1] == '[' ||
					(i >= 2 && pattern[i-2] == '[' && (pattern[i-1] == '!' || pattern[i-1] == '^'))
				b.WriteByte(c)
			case c == '?' && !inClass:
				b.WriteString("[^/]")
			default:
				b.WriteByte(c)
			}
		}
		pattern = b.String()
	}
	return gitignore.CompileIgnoreLines(pattern)
}

// trimTrailingSpaces removes trailing whitespace unless escaped with "\".
func trimTrailingSpaces(s string) string {
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		if len(s) >= 2 && s[len(s)-2] == '\\' {
			return s[:len(s)-2] + s[len(s)-1:]
		}
		s = s[:len(s)-1]
	}
	return s
}

// unterminatedClass returns the index of a "[" that never closes, -1 if none.
func unterminatedClass(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' {
			i++
			continue
		}
		if pattern[i] != '[' {
			continue
		}
		j := i + 1
		if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
			j++
		}
		if j < len(pattern) && pattern[j] == ']' {
			j++
		}
		for ; j < len(pattern); j++ {
			if pattern[j] == ']' {
				break
			}
		}
		if j == len(pattern) {
			return i
		}
		i = j
	}
	return -1
}

// scope maps a project-relative path into the rule's anchor directory.
// The second return is false when the path is outside the anchor.
func (r *Rule) scope(rel string) (string, bool) {
	if r.AnchorDir == "" {
		return rel, true
	}
	sub := strings.TrimPrefix(rel, r.AnchorDir+"/")
	if sub == rel {
		return "", false
	}
	return sub, true
}

// matches reports whether the rule matches the anchored candidate path.
// Directories are matched with a trailing slash so dir-only patterns apply.
func (r *Rule) matches(sub string, isDir bool) bool {
	if sub == "" {
		return false
	}
	if isDir {
		sub += "/"
	}
	return r.matcher.MatchesPath(sub)
}

// normalize converts a candidate path to slash-separated clean relative form.
func normalize(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")
	return strings.Trim(rel, "/")
}
