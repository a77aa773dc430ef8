package pack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/i-winxd/kristal-wasm-compiler/internal/ignore"
)

const (
	// controlDir is the version-control metadata directory. It is excluded
	// unconditionally and no ignore rule can re-include it.
	controlDir = ".git"
	// entryPointFile marks a directory as a loadable game project.
	entryPointFile = "main.lua"
	// DefaultIgnoreFileName is the per-directory ignore-pattern file name.
	DefaultIgnoreFileName = ".gitignore"
)

// SelectionSet is the sorted list of project-relative slash paths slated for
// inclusion in the output archive.
type SelectionSet []string

// Select walks rootPath depth-first and returns every file that survives the
// ignore rules discovered along the way. Excluded directories are skipped
// without descending, so nothing beneath them can reappear. Symbolic links
// are followed; a directory reached twice through links is skipped and
// reported as a warning.
func Select(rootPath string, ignoreFileName string, logger *zap.Logger) (SelectionSet, []Warning, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, rootPath, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, rootPath)
	}
	if _, err := os.Stat(filepath.Join(rootPath, entryPointFile)); err != nil {
		return nil, nil, fmt.Errorf("%w: %s has no %s", ErrInvalidRoot, rootPath, entryPointFile)
	}

	realRoot, err := filepath.EvalSymlinks(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: resolve %s: %v", ErrInvalidRoot, rootPath, err)
	}

	s := &selector{
		ignoreFileName: ignoreFileName,
		evaluator:      ignore.NewEvaluator(),
		visited:        map[string]struct{}{realRoot: {}},
		logger:         logger,
	}
	if err := s.walk(rootPath, "", 0); err != nil {
		return nil, nil, err
	}

	sort.Strings(s.selected)
	return SelectionSet(s.selected), s.warnings, nil
}

type selector struct {
	ignoreFileName string
	evaluator      *ignore.Evaluator
	visited        map[string]struct{}
	selected       []string
	warnings       []Warning
	logger         *zap.Logger
}

func (s *selector) walk(dir string, rel string, depth int) error {
	if s.ignoreFileName != "" {
		rulePath := filepath.Join(dir, s.ignoreFileName)
		if info, statErr := os.Stat(rulePath); statErr == nil && !info.IsDir() {
			rules, loadErr := ignore.LoadRuleFile(rulePath, rel, depth)
			if loadErr != nil {
				return loadErr
			}
			s.evaluator.Add(rules)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childPath := filepath.Join(dir, name)

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			target, statErr := os.Stat(childPath)
			if statErr != nil {
				s.warnings = append(s.warnings, Warning{Path: childRel, Reason: "broken symlink, skipped"})
				continue
			}
			isDir = target.IsDir()
		}

		if isDir {
			if name == controlDir {
				continue
			}
			if s.evaluator.Excluded(childRel, true) {
				s.logger.Debug("directory excluded", zap.String("path", childRel))
				continue
			}
			realPath, resolveErr := filepath.EvalSymlinks(childPath)
			if resolveErr != nil {
				s.warnings = append(s.warnings, Warning{Path: childRel, Reason: "unresolvable link, skipped"})
				continue
			}
			if _, seen := s.visited[realPath]; seen {
				s.warnings = append(s.warnings, Warning{Path: childRel, Reason: "link target already visited, skipped"})
				continue
			}
			s.visited[realPath] = struct{}{}
			if walkErr := s.walk(childPath, childRel, depth+1); walkErr != nil {
				return walkErr
			}
			continue
		}

		if name == s.ignoreFileName {
			continue
		}
		if s.evaluator.Excluded(childRel, false) {
			continue
		}
		s.selected = append(s.selected, childRel)
	}

	return nil
}
