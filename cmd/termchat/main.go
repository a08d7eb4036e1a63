package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openclaude/termchat/internal/config"
	"github.com/openclaude/termchat/internal/hud"
	"github.com/openclaude/termchat/internal/logging"
	"github.com/openclaude/termchat/internal/render"
	"github.com/openclaude/termchat/internal/transcript"
)

// version is the CLI build version.
const version = "0.1.0"

// defaultTitle is used when neither flags nor settings name the chat.
const defaultTitle = "Terminal Chat"

// options holds all CLI flags.
type options struct {
	// Title overrides the frame title.
	Title string
	// Model overrides the default model selection.
	Model string
	// Settings provides a path or inline JSON for settings overrides.
	Settings string
	// SettingSources limits settings sources to load.
	SettingSources []string
	// StaleAfter overrides the streaming staleness threshold.
	StaleAfter time.Duration
	// Markdown formats completed replies as markdown.
	Markdown bool
	// Offline uses the canned responder instead of the provider.
	Offline bool
	// Transcript is the JSONL transcript path; "auto" picks one under the home directory.
	Transcript string
	// Debug sets the log level; logging is off when empty.
	Debug string
	// DebugFile writes debug logs to a file path.
	DebugFile string
	// SystemPrompt overrides the provider system prompt.
	SystemPrompt string
	// DisableSlashCommands sends "/..." lines to the generator verbatim.
	DisableSlashCommands bool
	// Version prints the CLI version.
	Version bool
}

// main wires Cobra and executes the CLI.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the root command and its subcommands.
func newRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "termchat",
		Short:         "termchat - a full-screen chat in your terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			return runRoot(cmd, opts)
		},
	}

	applyFlags(rootCmd.Flags(), opts)
	rootCmd.AddCommand(doctorCommand())
	return rootCmd
}

// applyFlags defines the root flags.
func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.SetNormalizeFunc(normalizeFlagName)

	flags.StringVar(&opts.Title, "title", "", "Chat window title")
	flags.StringVar(&opts.Model, "model", "", "Model for the current session")
	flags.StringVar(&opts.Settings, "settings", "", "Settings file path or JSON")
	flags.StringSliceVar(&opts.SettingSources, "setting-sources", nil, "Setting sources (user,project,local)")
	flags.DurationVar(&opts.StaleAfter, "stale-after", 0, "Start a new reply after this much streaming silence")
	flags.BoolVar(&opts.Markdown, "markdown", false, "Format completed replies as markdown")
	flags.BoolVar(&opts.Offline, "offline", false, "Use canned demo replies instead of the provider")
	flags.StringVar(&opts.Transcript, "transcript", "", "Append session events to a JSONL file")
	flags.Lookup("transcript").NoOptDefVal = "auto"
	flags.StringVar(&opts.Debug, "debug", "", "Enable debug logging at a level (debug|info|warn|error)")
	flags.Lookup("debug").NoOptDefVal = "debug"
	flags.StringVar(&opts.DebugFile, "debug-file", "", "Write debug logs to a file")
	flags.StringVar(&opts.SystemPrompt, "system-prompt", "", "System prompt")
	flags.BoolVar(&opts.DisableSlashCommands, "disable-slash-commands", false, "Disable slash commands")
	flags.BoolVarP(&opts.Version, "version", "v", false, "Output the version number")
}

// normalizeFlagName maps camel-case aliases to dashed names.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "systemPrompt":
		return "system-prompt"
	case "staleAfter":
		return "stale-after"
	default:
		return pflag.NormalizedName(name)
	}
}

// runRoot loads configuration, builds the session and runs it.
func runRoot(cmd *cobra.Command, opts *options) error {
	logger, closeLog, err := buildLogger(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get cwd: %w", err)
	}
	settings, err := config.LoadSettings(cwd, splitList(strings.Join(opts.SettingSources, ",")), opts.Settings)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	backend, err := buildBackend(opts, settings, logger)
	if err != nil {
		return err
	}

	terminal, err := hud.NewStdTerminal()
	if err != nil {
		if errors.Is(err, hud.ErrNotTerminal) {
			return fmt.Errorf("termchat needs an interactive terminal on stdin and stdout")
		}
		return err
	}
	defer terminal.Close()

	var recorder *transcript.Writer
	if opts.Transcript != "" {
		path := opts.Transcript
		if path == "auto" {
			path = ""
		}
		recorder, err = transcript.Create(path)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer func() {
			if closeErr := recorder.Close(); closeErr != nil {
				logger.Warn("close transcript", "error", closeErr)
			}
		}()
		if err := recorder.Write(transcript.Event{Type: transcript.TypeSessionStarted, Model: backend.model}); err != nil {
			logger.Warn("write transcript", "error", err)
		}
	}

	app := newChatApp(backend, recorder, logger, !opts.DisableSlashCommands)
	session := hud.New(terminal, hud.Options{
		Title:         resolveTitle(cmd, opts, settings),
		Generator:     app,
		Callbacks:     app.callbacks(),
		StaleAfter:    resolveStaleAfter(opts, settings),
		BlinkInterval: settings.BlinkInterval(),
		Frame:         framePalette(settings.Colors),
		Roles:         rolePalette(settings.Colors),
		Profile:       render.DetectProfile(os.Stdout),
		Markdown:      resolveMarkdown(cmd, opts, settings),
		Logger:        logger,
	})
	app.attach(session)
	for _, notice := range backend.notices {
		session.SendMessage(systemSender, notice, "")
	}

	logger.Info("starting chat", "model", backend.model, "offline", backend.offline)
	if err := session.Run(context.Background()); err != nil {
		return fmt.Errorf("chat session: %w", err)
	}
	return nil
}

// buildLogger opens the debug log when requested. Logs never go to the
// terminal, which the chat screen owns.
func buildLogger(opts *options) (*slog.Logger, func(), error) {
	if opts.Debug == "" && opts.DebugFile == "" {
		return logging.Discard(), func() {}, nil
	}
	path := opts.DebugFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, ".termchat", "debug.log")
	}
	file, err := logging.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	level := opts.Debug
	if level == "" {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: "text", Output: file})
	return logger, func() { _ = file.Close() }, nil
}

// resolveTitle picks the flag, then settings, then the default title.
func resolveTitle(cmd *cobra.Command, opts *options, settings *config.Settings) string {
	if cmd.Flags().Changed("title") {
		return opts.Title
	}
	if settings.Title != "" {
		return settings.Title
	}
	return defaultTitle
}

// resolveStaleAfter picks the flag, then settings; zero keeps the default.
func resolveStaleAfter(opts *options, settings *config.Settings) time.Duration {
	if opts.StaleAfter > 0 {
		return opts.StaleAfter
	}
	return settings.StaleAfter()
}

// resolveMarkdown picks the flag when given, then settings.
func resolveMarkdown(cmd *cobra.Command, opts *options, settings *config.Settings) bool {
	if cmd.Flags().Changed("markdown") {
		return opts.Markdown
	}
	if settings.Markdown != nil {
		return *settings.Markdown
	}
	return false
}

// doctorCommand validates provider configuration and permissions.
func doctorCommand() *cobra.Command {
	var ping bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check termchat configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), mustProviderPath(), ping)
		},
	}
	cmd.Flags().BoolVar(&ping, "ping", false, "Send a one-line request to the provider")
	return cmd
}

// runDoctor checks the provider config at path and optionally pings the backend.
func runDoctor(ctx context.Context, out io.Writer, path string, ping bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("provider config missing at %s", path)
	}
	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		return fmt.Errorf("provider config permissions too open: %s", mode)
	}
	cfg, err := config.LoadProviderConfig(path)
	if err != nil {
		return fmt.Errorf("provider config invalid: %w", err)
	}
	fmt.Fprintf(out, "OK: provider config %s\n", path)

	if !ping {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reply, err := pingProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("provider ping failed: %s", formatGeneratorError(err))
	}
	fmt.Fprintf(out, "OK: %s answered %q\n", cfg.DefaultModel, reply)
	return nil
}

// mustProviderPath returns the default config path or a fallback placeholder.
func mustProviderPath() string {
	path, err := config.ProviderConfigPath()
	if err != nil {
		return "~/.termchat/config.json"
	}
	return path
}

// splitList splits comma-separated values and drops empty entries.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
