// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package accel provides the accelerated compute engine.
//
// The engine prefers channel-blocked layouts (nChw8c activations, OIhw8i8o
// weights). Caller-supplied nchw inputs and oihw weights therefore need
// reorders, which the plan builder inserts automatically.
//
// Example:
//
//	import (
//	    "github.com/born-ml/vggplan/backend/accel"
//	    "github.com/born-ml/vggplan/vgg"
//	)
//
//	func main() {
//	    net, err := vgg.Build(accel.New(), vgg.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(net.Plan.Len(), net.Plan.Reorders()) // 18 6
//	}
package accel

import (
	"github.com/born-ml/vggplan/backend/cpu"
	internalaccel "github.com/born-ml/vggplan/internal/backend/accel"
)

// Backend is the accelerated engine. It shares its implementation with the
// CPU engine and differs in layout policy and reported device.
type Backend = cpu.Backend

// New creates an accelerated engine.
func New(opts ...cpu.Option) *Backend {
	return internalaccel.New(opts...)
}
