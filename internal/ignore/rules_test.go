package ignore

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRulesSkipsCommentsAndBlanks(t *testing.T) {
	input := strings.Join([]string{
		"# header comment",
		"",
		"*.log",
		"   ",
		"!important.log",
		"build/",
		`\#literal`,
		`\!bang`,
	}, "\n")

	rules, err := ParseRules(strings.NewReader(input), "test", "", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules) != 5 {
		t.Fatalf("rule count = %d, want 5", len(rules))
	}

	if rules[0].Pattern != "*.log" || rules[0].Negate {
		t.Fatalf("rule 0 = %+v", rules[0])
	}
	if !rules[1].Negate || rules[1].Pattern != "important.log" {
		t.Fatalf("rule 1 = %+v", rules[1])
	}
	if !rules[2].DirOnly {
		t.Fatalf("rule 2 should be dir-only: %+v", rules[2])
	}
	if rules[3].Pattern != "#literal" {
		t.Fatalf("rule 3 = %+v", rules[3])
	}
	if rules[4].Pattern != "!bang" || rules[4].Negate {
		t.Fatalf("rule 4 = %+v", rules[4])
	}
}

func TestParseRulesReportsFileAndLine(t *testing.T) {
	cases := []struct {
		name  string
		input string
		line  int
	}{
		{"UnterminatedClass", "ok.txt\nbad[ab\n", 2},
		{"EmptyNegation", "!\n", 1},
		{"SlashOnly", "*.tmp\n/\n", 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRules(strings.NewReader(tc.input), "rules.txt", "", 0)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.File != "rules.txt" || parseErr.Line != tc.line {
				t.Fatalf("reported %s:%d, want rules.txt:%d", parseErr.File, parseErr.Line, tc.line)
			}
		})
	}
}

func TestParseRulesDepthAndAnchor(t *testing.T) {
	rules, err := ParseRules(strings.NewReader("*.wav\n"), "sub/dir/.gitignore", "sub/dir", 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rules[0].AnchorDir != "sub/dir" || rules[0].Depth != 2 {
		t.Fatalf("rule = %+v", rules[0])
	}
}
