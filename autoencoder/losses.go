// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
)

// minProbability is the smallest normal float32. Probabilities are clipped to it before the log,
// so saturated predictions (exactly 0 or 1) yield finite losses and gradients: the log-probabilities
// are bounded below by log(minProbability) ~= -87.34.
const minProbability = 1.1754943508222875e-38

// BinaryCrossEntropy returns the mean over all elements of the binary cross-entropy between
// probabilities predictions and targets in [0, 1].
// Predictions (and their complement) are clipped to the smallest normal float32 before the log.
//
// losses.BinaryCrossentropy is not used because it doesn't reduce and doesn't clip.
func BinaryCrossEntropy(targets, predictions *Node) *Node {
	targets = ConvertDType(targets, predictions.DType())
	logP := Log(MaxScalar(predictions, minProbability))
	logOneMinusP := Log(MaxScalar(OneMinus(predictions), minProbability))
	elementLosses := Neg(Add(
		Mul(targets, logP),
		Mul(OneMinus(targets), logOneMinusP)))
	return ReduceAllMean(elementLosses)
}

// MeanSquaredError returns the mean over all elements of the squared difference between targets and predictions.
func MeanSquaredError(targets, predictions *Node) *Node {
	targets = ConvertDType(targets, predictions.DType())
	return losses.MeanSquaredError([]*Node{targets}, []*Node{predictions})
}
