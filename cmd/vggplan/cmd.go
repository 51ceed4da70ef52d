package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/born-ml/vggplan/backend/cpu"
	"github.com/born-ml/vggplan/internal/envconfig"
	"github.com/born-ml/vggplan/tensor"
	"github.com/born-ml/vggplan/vgg"
)

const version = "v0.1.0-dev"

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI creates the root command with all subcommands.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:   "vggplan [cpu|accel]",
		Short: "Build a layout-negotiated VGG inference plan",
		Long: `Build the VGG11 feature-extraction plan for an engine and print it.

The cpu engine prefers the caller's layouts and needs no reorders. The accel
engine prefers channel-blocked layouts, so reorders are inserted for the
input and for every weight tensor.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Version:           version,
		PersistentPreRunE: setupLogging,
		RunE:              PlanHandler,
	}
	addEngineFlags(rootCmd)
	rootCmd.Flags().Bool("plain-output", false, "Reorder the final features to nchw")

	runCmd := newRunCmd()
	addEngineFlags(runCmd)

	envVars := envconfig.AsMap()
	appendEnvDocs(rootCmd, []envconfig.EnvVar{
		envVars["VGGPLAN_DEBUG"],
		envVars["VGGPLAN_MEMORY_LIMIT"],
		envVars["VGGPLAN_NUM_THREADS"],
	})
	appendEnvDocs(runCmd, []envconfig.EnvVar{
		envVars["VGGPLAN_DEBUG"],
		envVars["VGGPLAN_MEMORY_LIMIT"],
		envVars["VGGPLAN_NUM_THREADS"],
		envVars["VGGPLAN_DATA"],
	})

	rootCmd.AddCommand(runCmd)
	return rootCmd
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch", 16, "Batch size")
	cmd.Flags().Uint64("memory-limit", 0, "Maximum bytes the engine may allocate (overrides VGGPLAN_MEMORY_LIMIT)")
	cmd.Flags().Uint("threads", 0, "Kernel worker goroutines (overrides VGGPLAN_NUM_THREADS)")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEngine parses the optional device argument and creates its engine.
// Flags take precedence over environment settings.
func newEngine(cmd *cobra.Command, args []string) (vgg.Engine, error) {
	kind := "cpu"
	if len(args) > 0 {
		kind = args[0]
	}
	device, err := tensor.ParseDevice(kind)
	if err != nil {
		return nil, err
	}

	limit := envconfig.MemoryLimit()
	if cmd.Flags().Changed("memory-limit") {
		limit, _ = cmd.Flags().GetUint64("memory-limit")
	}
	threads := envconfig.NumThreads()
	if cmd.Flags().Changed("threads") {
		threads, _ = cmd.Flags().GetUint("threads")
	}

	return vgg.NewEngine(device,
		cpu.WithMemoryLimit(int64(limit)),
		cpu.WithWorkers(int(threads)))
}

func buildConfig(cmd *cobra.Command) (vgg.Config, error) {
	cfg := vgg.DefaultConfig()
	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return cfg, err
	}
	if batch <= 0 {
		return cfg, fmt.Errorf("invalid batch size %d", batch)
	}
	cfg.Batch = batch
	cfg.Logger = slog.Default()
	return cfg, nil
}
