// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go host compute engine.
//
// The engine prefers plain layouts (nchw activations, oihw weights, x bias),
// the same layouts callers supply, so plans built for it need no reorders.
// Convolutions use im2col; pooling records the source offset of every
// window maximum in an int32 workspace.
//
// Example:
//
//	import (
//	    "github.com/born-ml/vggplan/backend/cpu"
//	    "github.com/born-ml/vggplan/vgg"
//	)
//
//	func main() {
//	    net, err := vgg.Build(cpu.New(), vgg.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(net.Plan.Len()) // 12
//	}
package cpu

import (
	internalcpu "github.com/born-ml/vggplan/internal/backend/cpu"
	"github.com/born-ml/vggplan/internal/engine"
)

// Backend is the host engine.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// Compile-time check that Backend implements engine.Engine.
var _ engine.Engine = (*Backend)(nil)

// New creates a CPU engine.
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithMemoryLimit caps the total bytes the engine may allocate. 0 disables the cap.
func WithMemoryLimit(bytes int64) Option {
	return internalcpu.WithMemoryLimit(bytes)
}

// WithWorkers sets the number of kernel worker goroutines; 0 uses one per CPU.
func WithWorkers(n int) Option {
	return internalcpu.WithWorkers(n)
}
