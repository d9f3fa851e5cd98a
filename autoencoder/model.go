// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package autoencoder trains a small fully connected autoencoder on MNIST.
//
// The network maps each image to the inverted image (1 - pixel): it is trained with binary
// cross-entropy and evaluated with mean squared error. All learnable state lives in a
// *context.Context, which is checkpointed between runs.
package autoencoder

import (
	"github.com/gomlx/autoencoder/mnist"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/pkg/errors"
)

const (
	// FlatSize is the size of a flattened image.
	FlatSize = mnist.Height * mnist.Width

	// HiddenSize and CodeSize are the widths of the hidden layer and of the code layer.
	HiddenSize = 256
	CodeSize   = 128
)

// Scopes of the model variables within the context.
const (
	EncoderScope = "encoder"
	DecoderScope = "decoder"
)

// denseSigmoid is an affine layer followed by a sigmoid, with its variables under ctx.
func denseSigmoid(ctx *context.Context, x *Node, outputDim int) *Node {
	return Sigmoid(layers.Dense(ctx, x, true, outputDim))
}

// ModelGraph builds the autoencoder for images shaped [batch, 28, 28] and returns the
// reconstruction with the same shape, with values in (0, 1).
//
// Variables are created (or reused) under the scopes encoder/l1, encoder/l2, decoder/l1 and decoder/l2.
func ModelGraph(ctx *context.Context, images *Node) *Node {
	dims := images.Shape().Dimensions
	batchSize := dims[0]
	x := Reshape(images, batchSize, FlatSize)

	encoderCtx := ctx.In(EncoderScope)
	x = denseSigmoid(encoderCtx.In("l1"), x, HiddenSize)
	x = denseSigmoid(encoderCtx.In("l2"), x, CodeSize)

	decoderCtx := ctx.In(DecoderScope)
	x = denseSigmoid(decoderCtx.In("l1"), x, HiddenSize)
	x = denseSigmoid(decoderCtx.In("l2"), x, FlatSize)
	return Reshape(x, dims...)
}

// InvertedTarget returns the training target for the given input images: 1 - pixel,
// reshaped to the shape of the reconstruction.
func InvertedTarget(images, reconstruction *Node) *Node {
	target := ConvertDType(images, reconstruction.DType())
	target = Reshape(target, reconstruction.Shape().Dimensions...)
	return OneMinus(target)
}

// Reconstruct runs the model once on images ([batch, 28, 28] float32) and returns the reconstructions.
//
// It uses the variables already in ctx, creating them if they don't exist yet.
func Reconstruct(backend backends.Backend, ctx *context.Context, images *tensors.Tensor) (*tensors.Tensor, error) {
	exec, err := context.NewExec(backend, ctx.Checked(false), ModelGraph)
	if err != nil {
		return nil, errors.WithMessage(err, "creating reconstruction executor")
	}
	output, err := exec.Exec1(images)
	if err != nil {
		return nil, errors.WithMessage(err, "reconstructing images")
	}
	return output, nil
}
