// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package vgg_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vggplan/backend/cpu"
	"github.com/born-ml/vggplan/tensor"
	"github.com/born-ml/vggplan/vgg"
)

func TestNewEngine(t *testing.T) {
	for _, tc := range []struct {
		device   tensor.Device
		name     string
		reorders int
	}{
		{tensor.CPU, "cpu", 0},
		{tensor.Accelerated, "accel", 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			eng, err := vgg.NewEngine(tc.device)
			require.NoError(t, err)
			assert.Equal(t, tc.name, eng.Name())

			net, err := vgg.Build(eng, vgg.DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{16, 512, 28, 28}, net.Output.Shape())
			assert.Equal(t, 12+tc.reorders, net.Plan.Len())
			assert.Equal(t, tc.reorders, net.Plan.Reorders())
		})
	}

	_, err := vgg.NewEngine(tensor.Device(9))
	assert.Error(t, err)
}

func TestBuild_MemoryLimit(t *testing.T) {
	eng, err := vgg.NewEngine(tensor.CPU, cpu.WithMemoryLimit(1<<20))
	require.NoError(t, err)

	_, err = vgg.Build(eng, vgg.DefaultConfig())
	assert.True(t, errors.Is(err, vgg.ErrResourceExhausted), "got %v", err)
}
