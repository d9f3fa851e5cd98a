// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"fmt"
	"io"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Trainer runs the training and evaluation steps of the autoencoder over a context.
//
// The context is mutated only by the training step (one optimizer update per batch).
// A Trainer is not safe for concurrent use.
type Trainer struct {
	backend   backends.Backend
	ctx       *context.Context
	optimizer optimizers.Interface

	trainExec, evalExec *context.Exec

	// ProgressOutput, if not nil, receives a progress bar for each training epoch.
	ProgressOutput io.Writer
}

// History holds the losses collected by Trainer.Run, one entry per epoch.
type History struct {
	// TrainLoss is the mean binary cross-entropy over the epoch's batches, NaN if there were none.
	TrainLoss []float64

	// TestLoss is the mean squared error on the test split at the end of the epoch, NaN if the split is empty.
	TestLoss []float64
}

// NewTrainer creates a trainer for the variables in ctx, with the optimizer configured by
// the context hyperparameters (see CreateDefaultContext).
func NewTrainer(backend backends.Backend, ctx *context.Context) (*Trainer, error) {
	t := &Trainer{backend: backend, ctx: ctx}
	err := exceptions.TryCatch[error](func() { t.optimizer = optimizers.FromContext(ctx) })
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create optimizer")
	}
	execCtx := ctx.Checked(false)
	t.trainExec, err = context.NewExec(backend, execCtx, t.trainStepGraph)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create training executor")
	}
	t.evalExec, err = context.NewExec(backend, execCtx, evalGraph)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create evaluation executor")
	}
	return t, nil
}

// trainStepGraph returns the training loss for the images batch, and updates the variables with one optimizer step.
func (t *Trainer) trainStepGraph(ctx *context.Context, images *Node) *Node {
	g := images.Graph()
	ctx.SetTraining(g, true)
	reconstruction := ModelGraph(ctx, images)
	loss := BinaryCrossEntropy(InvertedTarget(images, reconstruction), reconstruction)
	t.optimizer.UpdateGraph(ctx, g, loss)
	return loss
}

// evalGraph returns the evaluation loss for the images, without changing any variables.
func evalGraph(ctx *context.Context, images *Node) *Node {
	reconstruction := ModelGraph(ctx, images)
	return MeanSquaredError(InvertedTarget(images, reconstruction), reconstruction)
}

func scalarLoss(t *tensors.Tensor) float64 {
	defer func() { _ = t.FinalizeAll() }()
	return float64(tensors.ToScalar[float32](t))
}

// TrainEpoch resets ds and runs one optimizer step per batch until ds is exhausted (io.EOF).
// Only the first input of each batch (the images) is used.
//
// It returns the number of steps and their mean loss. If ds yields no batches,
// the optimizer is never invoked and the mean loss is NaN.
func (t *Trainer) TrainEpoch(ds train.Dataset) (steps int, meanLoss float64, err error) {
	ds.Reset()
	var bar *progressbar.ProgressBar
	if t.ProgressOutput != nil {
		term := termenv.NewOutput(t.ProgressOutput)
		term.HideCursor()
		bar = newEpochProgressBar(t.ProgressOutput, ds)
		defer func() {
			_ = bar.Finish()
			term.ShowCursor()
		}()
	}

	var sumLoss float64
	for {
		_, inputs, labels, yieldErr := ds.Yield()
		if yieldErr == io.EOF {
			break
		}
		if yieldErr != nil {
			return steps, math.NaN(), errors.WithMessagef(yieldErr, "reading batch %d of dataset %q", steps, ds.Name())
		}
		if len(inputs) == 0 {
			return steps, math.NaN(), errors.Errorf("dataset %q yielded batch %d without inputs", ds.Name(), steps)
		}
		loss, execErr := t.trainExec.Exec1(inputs[0])
		finalizeAll(inputs)
		finalizeAll(labels)
		if execErr != nil {
			return steps, math.NaN(), errors.WithMessagef(execErr, "training step %d", steps)
		}
		sumLoss += scalarLoss(loss)
		steps++
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if steps == 0 {
		return 0, math.NaN(), nil
	}
	return steps, sumLoss / float64(steps), nil
}

// Evaluate returns the mean squared error between the reconstruction of images and their inverted
// pixels, computed in one pass. If images is nil or empty it returns NaN.
func (t *Trainer) Evaluate(images *tensors.Tensor) (float64, error) {
	if images == nil || images.Shape().Size() == 0 {
		return math.NaN(), nil
	}
	loss, err := t.evalExec.Exec1(images)
	if err != nil {
		return math.NaN(), errors.WithMessage(err, "evaluating test split")
	}
	return scalarLoss(loss), nil
}

// Run trains for numEpochs over trainDS. After each epoch it evaluates testImages and prints
// "Epoch <n>: loss = <mse>" to out.
//
// The first error aborts the run.
func (t *Trainer) Run(trainDS train.Dataset, testImages *tensors.Tensor, numEpochs int, out io.Writer) (*History, error) {
	history := &History{}
	for epoch := 1; epoch <= numEpochs; epoch++ {
		steps, trainLoss, err := t.TrainEpoch(trainDS)
		if err != nil {
			return history, errors.WithMessagef(err, "epoch %d", epoch)
		}
		testLoss, err := t.Evaluate(testImages)
		if err != nil {
			return history, errors.WithMessagef(err, "epoch %d", epoch)
		}
		history.TrainLoss = append(history.TrainLoss, trainLoss)
		history.TestLoss = append(history.TestLoss, testLoss)
		klog.V(1).Infof("Epoch %d: %d steps, train loss (cross-entropy) = %.5f, global step %d",
			epoch, steps, trainLoss, optimizers.GetGlobalStep(t.ctx))
		_, _ = fmt.Fprintf(out, "Epoch %3d: loss = %.5f\n", epoch, testLoss)
	}
	return history, nil
}

func finalizeAll(ts []*tensors.Tensor) {
	for _, t := range ts {
		if t == nil {
			continue
		}
		if err := t.FinalizeAll(); err != nil {
			klog.Warningf("Failed to finalize tensor: %v", err)
		}
	}
}

func newEpochProgressBar(w io.Writer, ds train.Dataset) *progressbar.ProgressBar {
	numSteps := -1
	if sized, ok := ds.(interface{ NumBatches() int }); ok {
		numSteps = sized.NumBatches()
	}
	return progressbar.NewOptions(numSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(ds.Name()),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
}
