package pack

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/i-winxd/kristal-wasm-compiler/internal/ignore"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.lua"), "function love.load() end\n")
	return root
}

func TestSelectRejectsInvalidRoots(t *testing.T) {
	empty := t.TempDir()
	asFile := filepath.Join(empty, "not-a-dir")
	writeFile(t, asFile, "x")

	cases := []struct {
		name string
		root string
	}{
		{"Missing", filepath.Join(empty, "nope")},
		{"NotADirectory", asFile},
		{"NoEntryPoint", empty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Select(tc.root, DefaultIgnoreFileName, zap.NewNop())
			if !errors.Is(err, ErrInvalidRoot) {
				t.Fatalf("err = %v, want ErrInvalidRoot", err)
			}
		})
	}
}

func TestSelectRespectsLayeredIgnoreFiles(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, ".gitignore"), "build/\n*.log\n")
	writeFile(t, filepath.Join(root, "src", "game.lua"), "return {}\n")
	writeFile(t, filepath.Join(root, "build", "out.bin"), "bin")
	writeFile(t, filepath.Join(root, "debug.log"), "log")
	writeFile(t, filepath.Join(root, "sub", ".gitignore"), "!important.log\n")
	writeFile(t, filepath.Join(root, "sub", "important.log"), "keep me")
	writeFile(t, filepath.Join(root, "sub", "other.log"), "drop me")

	selection, warnings, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	want := []string{"main.lua", "src/game.lua", "sub/important.log"}
	if len(selection) != len(want) {
		t.Fatalf("selection = %v, want %v", selection, want)
	}
	for i := range want {
		if selection[i] != want[i] {
			t.Fatalf("selection = %v, want %v", selection, want)
		}
	}
}

func TestSelectControlDirNeverIncluded(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, ".gitignore"), "!.git/\n")
	writeFile(t, filepath.Join(root, ".git", "config"), "[core]\n")
	writeFile(t, filepath.Join(root, ".git", "objects", "aa", "bb"), "blob")

	selection, _, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for _, rel := range selection {
		if rel == ".git" || strings.HasPrefix(rel, ".git/") {
			t.Fatalf("control directory leaked into selection: %s", rel)
		}
	}
}

func TestSelectExcludedDirectoryShortCircuits(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, ".gitignore"), "vendor/\n")
	writeFile(t, filepath.Join(root, "vendor", ".gitignore"), "!keep.txt\n")
	writeFile(t, filepath.Join(root, "vendor", "keep.txt"), "no")

	selection, _, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for _, rel := range selection {
		if rel != "main.lua" {
			t.Fatalf("unexpected entry: %s", rel)
		}
	}
}

func TestSelectSymlinkRevisitWarns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation is privileged on windows")
	}
	root := newProject(t)
	writeFile(t, filepath.Join(root, "shared", "f.txt"), "data")
	if err := os.Symlink(filepath.Join(root, "shared"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlink: %v", err)
	}

	selection, warnings, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one revisit warning", warnings)
	}
	seen := 0
	for _, rel := range selection {
		if filepath.Base(rel) == "f.txt" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("f.txt selected %d times, want 1", seen)
	}
}

func TestSelectDeterministicSortedOutput(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "zz.txt"), "z")
	writeFile(t, filepath.Join(root, "aa", "deep.txt"), "a")
	writeFile(t, filepath.Join(root, "mm.txt"), "m")

	first, _, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	second, _, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !sort.StringsAreSorted(first) {
		t.Fatalf("selection not sorted: %v", first)
	}
	if len(first) != len(second) {
		t.Fatalf("runs differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("runs differ at %d: %v vs %v", i, first, second)
		}
	}
}

func TestSelectMalformedIgnoreFileIsFatal(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, ".gitignore"), "fine.txt\nbad[ab\n")

	_, _, err := Select(root, DefaultIgnoreFileName, zap.NewNop())
	var parseErr *ignore.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if parseErr.Line != 2 {
		t.Fatalf("line = %d, want 2", parseErr.Line)
	}
}
