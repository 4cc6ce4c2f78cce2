package prog

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// NewCommand returns the root command of the demo.
func NewCommand() *cobra.Command {
	return newCommand(func(ctx context.Context, cfg Config) error {
		return Run(ctx, cfg, nil)
	})
}

func newCommand(run func(context.Context, Config) error) *cobra.Command {
	var (
		configPath string
		flags      = DefaultConfig()
		noEcho     bool
	)
	cmd := &cobra.Command{
		Use:   "asyncline",
		Short: "Edit a line while timers print above it",
		Long: `asyncline reads commands from the terminal while two timers print
messages above the prompt. Type "help" at the prompt for the commands.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if configPath != "" {
				var err error
				cfg, err = LoadConfig(configPath)
				if err != nil {
					return err
				}
			}
			fs := cmd.Flags()
			if fs.Changed("prompt") {
				cfg.Prompt = flags.Prompt
			}
			if fs.Changed("max-history") {
				cfg.MaxHistory = flags.MaxHistory
			}
			if fs.Changed("history-db") {
				cfg.HistoryDB = flags.HistoryDB
			}
			if fs.Changed("log") {
				cfg.Log = flags.Log
			}
			if fs.Changed("metrics-addr") {
				cfg.MetricsAddr = flags.MetricsAddr
			}
			if fs.Changed("no-echo") {
				cfg.Echo = !noEcho
			}
			if fs.Changed("emacs") {
				cfg.Emacs = flags.Emacs
			}
			if fs.Changed("color") {
				cfg.Color = flags.Color
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configPath, "config", "", "YAML file to read settings from")
	fs.StringVar(&flags.Prompt, "prompt", flags.Prompt, "the prompt")
	fs.IntVar(&flags.MaxHistory, "max-history", flags.MaxHistory, "maximum number of history entries")
	fs.StringVar(&flags.HistoryDB, "history-db", "", "database file to keep history in")
	fs.StringVar(&flags.Log, "log", "", "file to write log messages to, instead of above the prompt")
	fs.StringVar(&flags.MetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, such as :9090")
	fs.BoolVar(&noEcho, "no-echo", false, "do not leave submitted lines on the screen")
	fs.BoolVar(&flags.Emacs, "emacs", false, "bind Ctrl-A and Ctrl-E to Home and End")
	fs.BoolVar(&flags.Color, "color", false, "color the prompt and the help")
	return cmd
}

// Execute runs the root command with the arguments of the process, and
// returns the exit status.
func Execute() int {
	if err := NewCommand().Execute(); err != nil {
		os.Stderr.WriteString("asyncline: " + err.Error() + "\n")
		return 1
	}
	return 0
}
