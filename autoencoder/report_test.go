// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/autoencoder/mnist"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBackend(t *testing.T) {
	var stdout, stderr bytes.Buffer
	backend, err := SelectBackend(FallbackBackendConfig, &stdout, &stderr)
	require.NoError(t, err)
	require.NotNil(t, backend)
	assert.Empty(t, stdout.String())
	assert.Equal(t, "Running on CPU\n", stderr.String())

	_, err = SelectBackend("nonexistent_backend:x", &stdout, &stderr)
	require.Error(t, err)
}

func TestPlotLosses(t *testing.T) {
	history := &History{
		TrainLoss: []float64{math.NaN(), 0.4, 0.3},
		TestLoss:  []float64{0.2, 0.1, 0.05},
	}
	filePath := path.Join(t.TempDir(), "losses.png")
	require.NoError(t, PlotLosses(history, filePath))
	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Len(t, lossPoints(history.TrainLoss), 2, "NaN losses are skipped")
}

func TestSamplesGrid(t *testing.T) {
	backend := buildTestBackend(t)
	ctx := newTestContext(20)
	set := syntheticSet(3, 21)
	grid, err := SamplesGrid(backend, ctx, set.Tensor(nil))
	require.NoError(t, err)
	bounds := grid.Bounds()
	assert.Equal(t, 3*(mnist.Width*sampleScale+sampleSpacing)+sampleSpacing, bounds.Dx())
	assert.Equal(t, 3*(mnist.Height*sampleScale+sampleSpacing)+sampleSpacing, bounds.Dy())

	// First row holds the inputs, second row the inverted targets.
	input := set.Image(0)
	for _, p := range []int{0, 5*mnist.Width + 5, 14*mnist.Width + 14} {
		x, y := p%mnist.Width, p/mnist.Width
		inputPixel := color.GrayModel.Convert(grid.At(
			sampleSpacing+x*sampleScale, sampleSpacing+y*sampleScale)).(color.Gray)
		assert.Equal(t, input[p], inputPixel.Y)
		targetPixel := color.GrayModel.Convert(grid.At(
			sampleSpacing+x*sampleScale, 2*sampleSpacing+mnist.Height*sampleScale+y*sampleScale)).(color.Gray)
		assert.Equal(t, 255-input[p], targetPixel.Y)
	}

	filePath := path.Join(t.TempDir(), "samples.png")
	require.NoError(t, SaveSamples(backend, ctx, set.Tensor([]int{0, 1}), filePath))
	saved, err := imaging.Open(filePath)
	require.NoError(t, err)
	assert.Equal(t, 2*(mnist.Width*sampleScale+sampleSpacing)+sampleSpacing, saved.Bounds().Dx())
}

func TestSummary(t *testing.T) {
	backend := buildTestBackend(t)
	ctx := newTestContext(22)
	_ = must.M1(Reconstruct(backend, ctx, syntheticSet(1, 23).Tensor(nil)))
	summary := Summary(ctx)
	assert.Contains(t, summary, "468,368", "number of parameters")
	for _, scope := range []string{"/encoder/l1/dense", "/encoder/l2/dense", "/decoder/l1/dense", "/decoder/l2/dense"} {
		assert.Contains(t, summary, scope)
	}
	assert.NotContains(t, summary, "#rngState", "only model variables are listed")
}
