package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/i-winxd/kristal-wasm-compiler/internal/logging"
	"github.com/i-winxd/kristal-wasm-compiler/internal/pack"
)

var (
	logger  *zap.Logger
	rootCmd = &cobra.Command{
		Use:   "kristal-pack [flags] <project-root> <output>",
		Short: "Package a Kristal project into a web-loadable .love archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			compress := viper.GetBool("compress")

			plan := pack.Plan{
				StripBinaries:     compress || viper.GetBool("strip-binaries"),
				StripWallpapers:   compress || viper.GetBool("strip-wallpapers"),
				TranscodeAudio:    compress || viper.GetBool("transcode-audio"),
				WallpaperPatterns: viper.GetStringSlice("wallpaper-pattern"),
				Encoder:           viper.GetString("encoder"),
				Workers:           viper.GetInt("jobs"),
			}

			compression, err := pack.ParseCompressionLevel(viper.GetString("compression"))
			if err != nil {
				return err
			}
			if compress {
				compression = pack.CompressionMaximum
			}

			options := pack.Options{
				RootPath:       args[0],
				OutputPath:     args[1],
				WorkDir:        viper.GetString("work-dir"),
				IgnoreFileName: viper.GetString("ignore-file"),
				Plan:           plan,
				Compression:    compression,
			}

			report, err := pack.NewPipeline(logger).Run(cmd.Context(), options)
			if err != nil {
				logger.Error("packaging failed", zap.Error(err))
				return err
			}

			logger.Info("packaging completed",
				zap.String("artifact", report.ArtifactPath),
				zap.Int64("bytes", report.ArtifactSize),
				zap.Int("included", report.Included),
				zap.Int("stripped_binaries", report.StrippedBinaries),
				zap.Int("stripped_wallpapers", report.StrippedWallpapers),
				zap.Int("transcoded", report.Transcoded),
				zap.Int("transcode_failures", report.TranscodeFailures),
				zap.Int("warnings", len(report.Warnings)),
			)
			return nil
		},
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.Bool("compress", false, "enable every optimization pass and maximum container compression")
	flags.Bool("strip-binaries", false, "drop native precompiled modules (.dll/.so/.dylib)")
	flags.Bool("strip-wallpapers", false, "drop large background art")
	flags.Bool("transcode-audio", false, "transcode lossless audio to ogg/vorbis")
	flags.StringSlice("wallpaper-pattern", nil, "gitignore-style patterns naming background art")
	flags.String("encoder", pack.DefaultEncoder, "external audio encoder binary")
	flags.Int("jobs", 0, "transcode worker count (0 = number of CPUs)")
	flags.String("work-dir", "", "working copy directory (temporary when empty)")
	flags.String("ignore-file", pack.DefaultIgnoreFileName, "per-directory ignore-pattern file name")
	flags.String("compression", string(pack.CompressionFast), "container compression level: fast or maximum")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "console", "log format: console or json")

	viper.SetEnvPrefix("KRISTAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{
		"compress", "strip-binaries", "strip-wallpapers", "transcode-audio",
		"wallpaper-pattern", "encoder", "jobs", "work-dir", "ignore-file",
		"compression", "log-level", "log-format",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewLogger()
		return err
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			_ = logger.Sync()
		} else {
			os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
	if logger != nil {
		_ = logger.Sync()
	}
}
