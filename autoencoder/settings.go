// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

// Hyperparameters read from the context.
const (
	// ParamNumEpochs is the number of passes over the training split.
	ParamNumEpochs = "num_epochs"

	// ParamBatchSize is the number of images per training step.
	ParamBatchSize = "batch_size"

	// ParamShuffleSeed seeds the per-epoch shuffling of the training split. If 0, a time-based seed is used.
	ParamShuffleSeed = "shuffle_seed"
)

// CreateDefaultContext returns a context with the default hyperparameters for training the autoencoder.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamNumEpochs:   10,
		ParamBatchSize:   64,
		ParamShuffleSeed: int64(0),

		// Adam with constant learning rate: no schedule, no weight decay, no clipping.
		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 0.01,
		optimizers.ParamAdamEpsilon:  1e-8,
		optimizers.ParamAdamBeta1:    0.9,
		optimizers.ParamAdamBeta2:    0.999,
	})
	return ctx
}
