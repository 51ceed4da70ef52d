// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vgg builds layout-negotiated VGG inference plans.
//
// Build declares every operator with engine-chosen layouts, lets the engine
// resolve them and splices Reorder nodes wherever a consumer needs a layout
// its producer does not have. The result is an ordered plan that can be
// inspected or executed.
//
// Example:
//
//	import (
//	    "github.com/born-ml/vggplan/tensor"
//	    "github.com/born-ml/vggplan/vgg"
//	)
//
//	func main() {
//	    eng, err := vgg.NewEngine(tensor.Accelerated)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    net, err := vgg.Build(eng, vgg.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(net.Output.Shape()) // 16x512x28x28
//	}
package vgg

import (
	"context"
	"fmt"

	"github.com/born-ml/vggplan/backend/accel"
	"github.com/born-ml/vggplan/backend/cpu"
	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/plan"
	internalvgg "github.com/born-ml/vggplan/internal/vgg"
	"github.com/born-ml/vggplan/tensor"
)

// Engine is the compute engine interface plans are built against.
type Engine = engine.Engine

// Plan is an ordered list of engine primitives with bound operands.
type Plan = plan.Plan

// Row is one line of a plan listing.
type Row = plan.Row

// Config describes the network to build.
type Config = internalvgg.Config

// Stage is one row of the topology table.
type Stage = internalvgg.Stage

// Network is a built plan with its input and output buffers.
type Network = internalvgg.Network

// VGG11 is the convolutional trunk built by default.
var VGG11 = internalvgg.VGG11

// Errors returned by Build and by plan execution; test with errors.Is.
var (
	ErrShapeMismatch     = engine.ErrShapeMismatch
	ErrLayoutResolution  = engine.ErrLayoutResolution
	ErrResourceExhausted = engine.ErrResourceExhausted
	ErrUnboundRole       = engine.ErrUnboundRole
	ErrNotTopological    = engine.ErrNotTopological
)

// DefaultConfig returns the 16 x 3 x 224 x 224 VGG11 configuration.
func DefaultConfig() Config {
	return internalvgg.DefaultConfig()
}

// Build constructs the plan for cfg on eng.
func Build(eng Engine, cfg Config) (*Network, error) {
	return internalvgg.Build(eng, cfg)
}

// NewEngine creates the engine for a device kind.
func NewEngine(device tensor.Device, opts ...cpu.Option) (Engine, error) {
	switch device {
	case tensor.CPU:
		return cpu.New(opts...), nil
	case tensor.Accelerated:
		return accel.New(opts...), nil
	default:
		return nil, fmt.Errorf("no engine for device %s", device)
	}
}

// Execute runs every node of p in order.
func Execute(ctx context.Context, p *Plan) error {
	return plan.Execute(ctx, p)
}
