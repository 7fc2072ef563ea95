// questscript hosts event-driven scripts written in a natural-language
// scripting language and lets a user play them against a simulated world.
//
// Usage: questscript [flags] [scripts directory]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nathoo/questscript/cli"
	"github.com/nathoo/questscript/config"
	"github.com/nathoo/questscript/engine"
	"github.com/nathoo/questscript/loader"
	"github.com/nathoo/questscript/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "questscript: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("questscript", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", config.DefaultPath, "path to the HuJSON config file")
		scriptsDir  = fs.String("scripts", "", "directory of *.sk scripts (overrides the config file)")
		addonsDir   = fs.String("addons", "", "directory of *.lua addons (overrides the config file)")
		playback    = fs.String("playback", "", "read commands from a file and echo them, implies -plain")
		plain       = fs.Bool("plain", false, "use the line REPL instead of the terminal UI")
		trace       = fs.Bool("trace", false, "print the events each command fires")
		seed        = fs.Uint64("seed", 0, "random seed (0 seeds from the clock)")
		debug       = fs.Bool("debug", false, "development logging")
		showVersion = fs.Bool("version", false, "print the version and exit")
	)
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("QUESTSCRIPT")); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("questscript %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *scriptsDir != "" {
		cfg.SetScriptsDir(*scriptsDir)
	}
	if fs.NArg() > 0 {
		cfg.SetScriptsDir(fs.Arg(0))
	}
	if *addonsDir != "" {
		cfg.SetAddonsDir(*addonsDir)
	}
	if *debug {
		cfg.SetDebug(true)
	}
	if *seed != 0 {
		cfg.SetSeed(*seed)
	}

	logger, err := newLogger(&cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	eng, err := engine.New(engine.Options{
		Limits:    cfg.Limits(),
		CacheSize: cfg.CacheSize(),
		Seed:      cfg.Seed(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	// 1. Addons register syntax while the registry is open.
	if dir := cfg.AddonsDir(); isDir(dir) {
		err := eng.LoadAddons(dir)
		var ve *loader.ValidationError
		switch {
		case errors.As(err, &ve):
			for _, w := range ve.Warnings {
				logger.Warnf("addon: %s", w)
			}
			for _, e := range ve.Errors {
				logger.Errorf("addon: %s", e)
			}
		case err != nil:
			return err
		}
	}

	// 2. Close the registry and load the scripts.
	eng.Start()
	if dir := cfg.ScriptsDir(); isDir(dir) {
		diags, err := eng.LoadDir(dir)
		if err != nil {
			return err
		}
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, cli.FormatDiagnostic(d))
		}
		logger.Infof("loaded %d scripts from %s", len(eng.Scripts()), dir)
	}

	// 3. Hand over to the front end.
	if *playback != "" {
		f, err := os.Open(*playback)
		if err != nil {
			return fmt.Errorf("opening playback file: %w", err)
		}
		defer f.Close()
		c := cli.New(eng, cfg.ScriptsDir())
		c.In = f
		c.EchoInput = true
		c.Trace = *trace
		c.Run()
		return nil
	}

	// Use plain CLI if -plain or stdout is not a terminal.
	if *plain || !isTerminal() {
		c := cli.New(eng, cfg.ScriptsDir())
		c.Trace = *trace
		c.Run()
		return nil
	}
	return tui.Run(eng, cfg.ScriptsDir())
}

// newLogger builds a console logger for development or a JSON logger on
// stderr otherwise, at the configured level.
func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Debug() {
		zc = zap.NewDevelopmentConfig()
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
