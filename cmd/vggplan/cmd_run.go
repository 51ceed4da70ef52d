package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/vggplan/internal/dataset"
	"github.com/born-ml/vggplan/internal/envconfig"
	"github.com/born-ml/vggplan/vgg"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [cpu|accel]",
		Short: "Stream dataset batches through the plan",
		Long: `Build the plan, then feed it batches from an MNIST-style IDX dataset.

Images are upsampled to 224x224, replicated to three channels and scaled to
[0, 1]. Statistics of the final features are printed per batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: RunHandler,
	}
	cmd.Flags().String("data", "", "Dataset directory (overrides VGGPLAN_DATA)")
	cmd.Flags().Int("batches", 1, "Number of batches to run; 0 runs the whole dataset")
	cmd.Flags().Bool("test", false, "Use the t10k split instead of train")
	return cmd
}

// RunHandler executes the plan on dataset batches.
func RunHandler(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("data")
	if dir == "" {
		dir = envconfig.DataDir()
	}
	if dir == "" {
		return errors.New("no dataset directory: use --data or VGGPLAN_DATA")
	}
	limit, _ := cmd.Flags().GetInt("batches")
	test, _ := cmd.Flags().GetBool("test")

	eng, err := newEngine(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	net, err := vgg.Build(eng, cfg)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(dir, !test)
	if err != nil {
		return err
	}
	dcfg := dataset.DefaultConfig()
	dcfg.Batch = cfg.Batch
	dcfg.Channels = cfg.Channels
	dcfg.Size = cfg.Height
	it, err := dataset.NewIterator(ds, dcfg)
	if err != nil {
		return err
	}

	var rows [][]string
	for limit == 0 || len(rows) < limit {
		batch, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		start := time.Now()
		features, err := net.Forward(cmd.Context(), batch.Images)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		s := summarize(features)
		slog.Debug("batch done", "batch", batch.Index, "elapsed", elapsed)
		rows = append(rows, []string{
			strconv.Itoa(batch.Index),
			fmt.Sprint(batch.Class),
			fmt.Sprintf("%.4f", s.mean),
			fmt.Sprintf("%.4f", s.std),
			fmt.Sprintf("%.4f", s.max),
			elapsed.Round(time.Millisecond).String(),
		})
	}
	if len(rows) == 0 {
		return fmt.Errorf("dataset has fewer than %d samples", cfg.Batch)
	}

	renderTable(cmd.OutOrStdout(), []string{"BATCH", "LABELS", "MEAN", "STDDEV", "MAX", "ELAPSED"}, rows)
	return nil
}

type featureStats struct {
	mean, std, max float64
}

func summarize(features []float32) featureStats {
	x := make([]float64, len(features))
	for i, v := range features {
		x[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(x, nil)
	return featureStats{mean: mean, std: std, max: floats.Max(x)}
}
