// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gomlx/autoencoder/mnist"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

const (
	sampleScale   = 4
	sampleSpacing = 4
)

// grayImage converts a 28x28 image with values in [0, 1] to an image.Gray.
func grayImage(pixels []float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, mnist.Width, mnist.Height))
	for y := range mnist.Height {
		for x := range mnist.Width {
			v := min(max(pixels[y*mnist.Width+x], 0), 1)
			img.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}

// SamplesGrid builds an image with one column per input image and three rows: the input,
// the target (inverted input) and the reconstruction by the model.
// images must be shaped [batch, 28, 28], with values in [0, 1].
func SamplesGrid(backend backends.Backend, ctx *context.Context, images *tensors.Tensor) (image.Image, error) {
	dims := images.Shape().Dimensions
	if len(dims) != 3 || dims[1] != mnist.Height || dims[2] != mnist.Width {
		return nil, errors.Errorf("samples must be shaped [batch, %d, %d], got %s", mnist.Height, mnist.Width, images.Shape())
	}
	numSamples := dims[0]
	reconstruction, err := Reconstruct(backend, ctx, images)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reconstruction.FinalizeAll() }()
	inputs := tensors.MustCopyFlatData[float32](images)
	outputs := tensors.MustCopyFlatData[float32](reconstruction)

	cellWidth, cellHeight := mnist.Width*sampleScale, mnist.Height*sampleScale
	grid := imaging.New(
		numSamples*(cellWidth+sampleSpacing)+sampleSpacing,
		3*(cellHeight+sampleSpacing)+sampleSpacing,
		color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	targets := make([]float32, FlatSize)
	for ii := range numSamples {
		input := inputs[ii*FlatSize : (ii+1)*FlatSize]
		for p, v := range input {
			targets[p] = 1 - v
		}
		rows := [][]float32{input, targets, outputs[ii*FlatSize : (ii+1)*FlatSize]}
		for row, pixels := range rows {
			cell := imaging.Resize(grayImage(pixels), cellWidth, cellHeight, imaging.NearestNeighbor)
			position := image.Pt(
				sampleSpacing+ii*(cellWidth+sampleSpacing),
				sampleSpacing+row*(cellHeight+sampleSpacing))
			grid = imaging.Paste(grid, cell, position)
		}
	}
	return grid, nil
}

// SaveSamples saves SamplesGrid of images to filePath. The format is taken from the file extension.
func SaveSamples(backend backends.Backend, ctx *context.Context, images *tensors.Tensor, filePath string) error {
	grid, err := SamplesGrid(backend, ctx, images)
	if err != nil {
		return err
	}
	if err := imaging.Save(grid, filePath); err != nil {
		return errors.Wrapf(err, "saving samples to %q", filePath)
	}
	return nil
}
