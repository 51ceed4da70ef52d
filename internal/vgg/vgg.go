// Package vgg builds the feature-extraction plan of a VGG-style network.
//
// The topology is a table of stages. Each stage is a 3x3 convolution,
// optionally followed by ReLU and a 2x2 max pooling. Build turns the table
// into a plan for one engine, inserting reorders where the engine's
// preferred layouts differ from the producers'.
package vgg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/nn"
	"github.com/born-ml/vggplan/internal/plan"
	"github.com/born-ml/vggplan/internal/tensor"
)

// Stage is one row of the topology table.
type Stage struct {
	Name        string
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int
	Activation  bool
	Pool        bool
}

// Pooling used after every pooled stage.
var Pooling = nn.PoolSpec{Kernel: 2, Stride: 2, Padding: 0}

// VGG11 is the convolutional trunk built by default.
var VGG11 = []Stage{
	{Name: "conv1", InChannels: 3, OutChannels: 64, Kernel: 3, Stride: 1, Padding: 1, Activation: true, Pool: true},
	{Name: "conv2", InChannels: 64, OutChannels: 128, Kernel: 3, Stride: 1, Padding: 1, Activation: true, Pool: true},
	{Name: "conv3", InChannels: 128, OutChannels: 256, Kernel: 3, Stride: 1, Padding: 1, Activation: true},
	{Name: "conv4", InChannels: 256, OutChannels: 256, Kernel: 3, Stride: 1, Padding: 1, Activation: true, Pool: true},
	{Name: "conv5", InChannels: 256, OutChannels: 512, Kernel: 3, Stride: 1, Padding: 1},
}

// Config describes the network to build.
type Config struct {
	Batch    int
	Channels int
	Height   int
	Width    int
	Stages   []Stage

	// Slope is the ReLU negative slope; 0 gives max(0, x).
	Slope float32

	// PlainOutput appends a reorder of the final features to nchw when the
	// engine left them in another layout.
	PlainOutput bool

	Logger *slog.Logger
}

// DefaultConfig returns the 16 x 3 x 224 x 224 VGG11 configuration.
func DefaultConfig() Config {
	return Config{
		Batch:    16,
		Channels: 3,
		Height:   224,
		Width:    224,
		Stages:   VGG11,
	}
}

// InputShape returns the nchw input shape.
func (c Config) InputShape() tensor.Shape {
	return tensor.Shape{c.Batch, c.Channels, c.Height, c.Width}
}

// OutputShape computes the final feature shape from the stage table.
func (c Config) OutputShape() (tensor.Shape, error) {
	ch, h, w := c.Channels, c.Height, c.Width
	for _, st := range c.Stages {
		if st.InChannels != ch {
			return nil, fmt.Errorf("%s: expects %d input channels, previous stage gives %d: %w",
				st.Name, st.InChannels, ch, engine.ErrShapeMismatch)
		}
		h = tensor.OutputSize(h, st.Kernel, st.Stride, st.Padding)
		w = tensor.OutputSize(w, st.Kernel, st.Stride, st.Padding)
		if st.Pool {
			h = tensor.OutputSize(h, Pooling.Kernel, Pooling.Stride, Pooling.Padding)
			w = tensor.OutputSize(w, Pooling.Kernel, Pooling.Stride, Pooling.Padding)
		}
		if h <= 0 || w <= 0 {
			return nil, fmt.Errorf("%s: spatial size collapses to %dx%d: %w", st.Name, h, w, engine.ErrShapeMismatch)
		}
		ch = st.OutChannels
	}
	return tensor.Shape{c.Batch, ch, h, w}, nil
}

// Network is a built plan with its input and output buffers.
type Network struct {
	ID     uuid.UUID
	Config Config
	Plan   *plan.Plan
	Input  *tensor.Buffer
	Output *tensor.Buffer
}

// Build constructs the plan for cfg on eng. It returns either a complete
// network or an error, never a partially built plan.
func Build(eng engine.Engine, cfg Config) (*Network, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("vgg: no stages")
	}
	want, err := cfg.OutputShape()
	if err != nil {
		return nil, fmt.Errorf("vgg: %w", err)
	}

	id := uuid.New()
	logger = logger.With(slog.String("network", id.String()))
	p := plan.New(eng, plan.WithLogger(logger))
	b := nn.NewBuilder(p, logger)

	in, err := b.Input(cfg.InputShape())
	if err != nil {
		return nil, fmt.Errorf("vgg: %w", err)
	}

	x := in
	for _, st := range cfg.Stages {
		if x, err = buildStage(b, x, st, cfg.Slope); err != nil {
			return nil, fmt.Errorf("vgg: %w", err)
		}
		logger.Debug("stage built",
			slog.String("stage", st.Name),
			slog.String("output", x.Desc().String()),
			slog.Int("nodes", p.Len()))
	}
	if cfg.PlainOutput {
		if x, err = b.Reorder("output", x, tensor.NCHW); err != nil {
			return nil, fmt.Errorf("vgg: %w", err)
		}
	}
	if !x.Shape().Equal(want) {
		return nil, fmt.Errorf("vgg: output %v, table gives %v: %w", x.Shape(), want, engine.ErrShapeMismatch)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("vgg: %w", err)
	}

	logger.Info("network built",
		slog.String("engine", eng.Name()),
		slog.Int("nodes", p.Len()),
		slog.Int("reorders", p.Reorders()),
		slog.String("output", x.Desc().String()),
		slog.Int64("bytes", p.Bytes()))

	return &Network{ID: id, Config: cfg, Plan: p, Input: in, Output: x}, nil
}

func buildStage(b *nn.Builder, x *tensor.Buffer, st Stage, slope float32) (*tensor.Buffer, error) {
	x, err := b.Convolution(st.Name, x, nn.ConvSpec{
		OutChannels: st.OutChannels,
		Kernel:      st.Kernel,
		Stride:      st.Stride,
		Padding:     st.Padding,
	})
	if err != nil {
		return nil, err
	}
	if st.Activation {
		if x, err = b.ReLU(st.Name+"/relu", x, slope); err != nil {
			return nil, err
		}
	}
	if st.Pool {
		if x, err = b.MaxPool(st.Name+"/pool", x, Pooling); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Forward copies a canonical-order batch into the input buffer, runs the
// plan and returns the features in canonical order.
func (n *Network) Forward(ctx context.Context, input []float32) ([]float32, error) {
	if len(input) != n.Input.Shape().NumElements() {
		return nil, fmt.Errorf("forward: input has %d elements, network takes %v: %w",
			len(input), n.Input.Shape(), engine.ErrShapeMismatch)
	}
	tensor.Pack(n.Input, input)
	if err := plan.Execute(ctx, n.Plan); err != nil {
		return nil, err
	}
	return tensor.Unpack(n.Output), nil
}
