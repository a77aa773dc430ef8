package pack

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

// Plan configures the optional size-reduction passes. Each pass is
// independent; they run in a fixed order so stripping shrinks the transcode
// workload.
type Plan struct {
	StripBinaries   bool
	StripWallpapers bool
	TranscodeAudio  bool

	// WallpaperPatterns are gitignore-style patterns naming large background
	// art; DefaultWallpaperPatterns when empty.
	WallpaperPatterns []string
	// Encoder is the external audio encoder binary name or path.
	Encoder string
	// Workers bounds the transcode worker pool, NumCPU when zero.
	Workers int
}

// DefaultEncoder is the external tool used for audio transcoding.
const DefaultEncoder = "ffmpeg"

// DefaultWallpaperPatterns match the engine's bundled border art.
var DefaultWallpaperPatterns = []string{"assets/sprites/borders/"}

// nativeModuleExts are precompiled native modules the web runtime cannot load.
var nativeModuleExts = map[string]struct{}{
	".dll":   {},
	".so":    {},
	".dylib": {},
}

// transcodeExts are uncompressed or lossless audio formats worth transcoding.
// The target extension is deliberately absent so a second run is a no-op.
var transcodeExts = map[string]struct{}{
	".wav":  {},
	".flac": {},
	".aiff": {},
	".aif":  {},
}

const (
	transcodedExt = ".ogg"
	vorbisQuality = "1"
)

// TransformStats summarizes what the passes did to the selection.
type TransformStats struct {
	StrippedBinaries   int
	StrippedWallpapers int
	Transcoded         int
	TranscodeFailures  int
	SkippedByCancel    int
	Warnings           []Warning
}

// Transform applies the enabled passes and returns the replacement selection.
// Strip passes are pure filters. Transcoding stages each source file into
// workDir, encodes it there, and removes the staged original; the source tree
// is never touched. A per-file encode failure keeps the entry in its original
// form and is reported as a warning. A missing encoder binary is fatal and
// detected before any file is read.
func Transform(ctx context.Context, plan Plan, selection SelectionSet, sourceRoot string, workDir string, logger *zap.Logger) (SelectionSet, TransformStats, error) {
	var stats TransformStats
	out := append(SelectionSet(nil), selection...)

	if plan.StripBinaries {
		kept := out[:0]
		for _, rel := range out {
			if _, native := nativeModuleExts[strings.ToLower(filepath.Ext(rel))]; native {
				stats.StrippedBinaries++
				continue
			}
			kept = append(kept, rel)
		}
		out = kept
	}

	if plan.StripWallpapers {
		patterns := plan.WallpaperPatterns
		if len(patterns) == 0 {
			patterns = DefaultWallpaperPatterns
		}
		matcher := gitignore.CompileIgnoreLines(patterns...)
		kept := out[:0]
		for _, rel := range out {
			if matcher.MatchesPath(rel) {
				stats.StrippedWallpapers++
				continue
			}
			kept = append(kept, rel)
		}
		out = kept
	}

	if plan.TranscodeAudio {
		encoder := plan.Encoder
		if encoder == "" {
			encoder = DefaultEncoder
		}
		encoderPath, err := exec.LookPath(encoder)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %q: %v", ErrEncoderNotFound, encoder, err)
		}
		workers := plan.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		if err := transcodeAll(ctx, encoderPath, workers, out, sourceRoot, workDir, &stats, logger); err != nil {
			return nil, stats, err
		}
	}

	sort.Strings(out)
	sort.Slice(stats.Warnings, func(i, j int) bool { return stats.Warnings[i].Path < stats.Warnings[j].Path })
	return out, stats, nil
}

type transcodeUnit struct {
	index  int
	rel    string
	target string
}

type transcodeOutcome struct {
	index   int
	newRel  string
	skipped bool
	err     error
}

// transcodeAll converts every transcodable entry over a bounded worker pool
// and merges the outcomes back into selection after all workers finish.
func transcodeAll(ctx context.Context, encoderPath string, workers int, selection SelectionSet, sourceRoot string, workDir string, stats *TransformStats, logger *zap.Logger) error {
	existing := make(map[string]struct{}, len(selection))
	for _, rel := range selection {
		existing[rel] = struct{}{}
	}

	// A transcode must not overwrite another selection entry: a pre-existing
	// file at the target name, or a sibling lossless file mapping to the same
	// target, would end up as duplicate archive paths. Colliding units keep
	// their original form.
	planned := make(map[string]struct{})
	units := make([]transcodeUnit, 0)
	for i, rel := range selection {
		if _, ok := transcodeExts[strings.ToLower(filepath.Ext(rel))]; !ok {
			continue
		}
		target := strings.TrimSuffix(rel, filepath.Ext(rel)) + transcodedExt
		if _, taken := existing[target]; taken {
			stats.Warnings = append(stats.Warnings, Warning{Path: rel, Reason: "transcode target " + target + " already selected, kept original"})
			continue
		}
		if _, taken := planned[target]; taken {
			stats.Warnings = append(stats.Warnings, Warning{Path: rel, Reason: "transcode target " + target + " claimed by a sibling entry, kept original"})
			continue
		}
		planned[target] = struct{}{}
		units = append(units, transcodeUnit{index: i, rel: rel, target: target})
	}
	if len(units) == 0 {
		return nil
	}

	if len(units) < workers {
		workers = len(units)
	}

	jobs := make(chan transcodeUnit)
	outcomes := make(chan transcodeOutcome, len(units))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range jobs {
				// Cancellation is honored between units only; a started
				// encode always runs to completion.
				select {
				case <-ctx.Done():
					outcomes <- transcodeOutcome{index: unit.index, skipped: true}
					continue
				default:
				}
				err := transcodeOne(encoderPath, sourceRoot, workDir, unit.rel, unit.target)
				outcomes <- transcodeOutcome{index: unit.index, newRel: unit.target, err: err}
			}
		}()
	}

	for _, unit := range units {
		jobs <- unit
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		rel := selection[outcome.index]
		switch {
		case outcome.skipped:
			stats.SkippedByCancel++
			stats.Warnings = append(stats.Warnings, Warning{Path: rel, Reason: "transcode skipped by cancellation"})
		case outcome.err != nil:
			stats.TranscodeFailures++
			stats.Warnings = append(stats.Warnings, Warning{Path: rel, Reason: "transcode failed: " + outcome.err.Error()})
			logger.Warn("transcode failed", zap.String("path", rel), zap.Error(outcome.err))
		default:
			selection[outcome.index] = outcome.newRel
			stats.Transcoded++
			logger.Debug("transcoded", zap.String("from", rel), zap.String("to", outcome.newRel))
		}
	}
	return nil
}

// transcodeOne stages rel into workDir, encodes it to the target relative
// path, and removes the staged original.
func transcodeOne(encoderPath string, sourceRoot string, workDir string, rel string, target string) error {
	staged := filepath.Join(workDir, filepath.FromSlash(rel))
	if err := copyFileEnsure(filepath.Join(sourceRoot, filepath.FromSlash(rel)), staged); err != nil {
		return err
	}

	encoded := filepath.Join(workDir, filepath.FromSlash(target))

	cmd := exec.Command(encoderPath, "-y", "-loglevel", "error", "-i", staged, "-codec:a", "libvorbis", "-qscale:a", vorbisQuality, encoded)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(staged)
		_ = os.Remove(encoded)
		if len(output) > 0 {
			return fmt.Errorf("%s: %s", err, strings.TrimSpace(string(output)))
		}
		return err
	}

	_ = os.Remove(staged)
	return nil
}

// copyFileEnsure copies a file creating destination directories as needed.
func copyFileEnsure(fromPath string, toPath string) error {
	src, err := os.Open(fromPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(toPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(toPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
