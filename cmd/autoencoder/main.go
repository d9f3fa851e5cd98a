// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// autoencoder trains a fully connected autoencoder on MNIST to output the inverted
// images, printing the test loss after each epoch.
//
// The model is loaded from the checkpoint directory if there is one, and saved back there at
// the end of training.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/gomlx/autoencoder/autoencoder"
	"github.com/gomlx/autoencoder/mnist"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagDataDir    = flag.String("data", "data", "Directory with the MNIST IDX files, uncompressed or gzipped.")
	flagCheckpoint = flag.String("checkpoint", "model_checkpoint",
		"Directory to load the model from, if present, and to save it to at the end of training. "+
			"If left empty, no checkpoints are loaded or saved.")
	flagDownload = flag.Bool("download", false, "Download the MNIST files missing in --data before training.")
	flagBackend  = flag.String("backend", "",
		`Backend configuration, e.g.: "xla:cuda", "xla:cpu" or "go". If empty, uses CUDA if available and falls back to CPU.`)
	flagProgress   = flag.Bool("progress", false, "Display a progress bar during each training epoch.")
	flagSummary    = flag.Bool("summary", false, "Print a summary of the model variables at the end of training.")
	flagPlot       = flag.String("plot", "", "If set, save a plot of the losses per epoch to this file (e.g.: losses.png).")
	flagSamples    = flag.String("samples", "", "If set, save a grid of test images, targets and reconstructions to this file.")
	flagNumSamples = flag.Int("num_samples", 8, "Number of test images in the --samples grid.")
)

func main() {
	ctx := autoencoder.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()

	err := exceptions.TryCatch[error](func() {
		check(run(ctx, *settings, os.Stdout, os.Stderr))
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		klog.V(1).Infof("Error details: %+v", err)
		os.Exit(1)
	}
	fmt.Println("Success!")
}

// check panics with err, if not nil, to be caught by exceptions.TryCatch in main.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

func run(ctx *context.Context, settings string, stdout, stderr io.Writer) error {
	paramsSet, err := commandline.ParseContextSettings(ctx, settings)
	if err != nil {
		return errors.WithMessage(err, "parsing --set")
	}
	klog.V(1).Infof("Hyperparameters:\n%s", commandline.SprintModifiedContextSettings(ctx, paramsSet))

	backend, err := autoencoder.SelectBackend(*flagBackend, stdout, stderr)
	if err != nil {
		return err
	}
	klog.V(1).Infof("Backend %q: %s", backend.Name(), backend.Description())

	dataDir := fsutil.MustReplaceTildeInDir(*flagDataDir)
	if *flagDownload {
		if err := mnist.Download(dataDir, true); err != nil {
			return err
		}
	}
	trainSet, err := mnist.Load(dataDir, mnist.Train)
	if err != nil {
		return err
	}
	testSet, err := mnist.Load(dataDir, mnist.Test)
	if err != nil {
		return err
	}

	// The checkpoint directory is only created once the data is known to be readable.
	checkpointDir := fsutil.MustReplaceTildeInDir(*flagCheckpoint)
	checkpoint, err := autoencoder.LoadCheckpoint(ctx, checkpointDir, stdout)
	if err != nil {
		return err
	}

	batchSize := context.GetParamOr(ctx, autoencoder.ParamBatchSize, 64)
	seed := context.GetParamOr(ctx, autoencoder.ParamShuffleSeed, int64(0))
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	trainDS := mnist.NewDataset("train", trainSet, batchSize, rand.New(rand.NewSource(seed)))
	var testImages *tensors.Tensor
	if testSet.Len() > 0 {
		testImages = testSet.Tensor(nil)
	}

	trainer, err := autoencoder.NewTrainer(backend, ctx)
	if err != nil {
		return err
	}
	if *flagProgress {
		trainer.ProgressOutput = stderr
	}
	numEpochs := context.GetParamOr(ctx, autoencoder.ParamNumEpochs, 10)
	history, err := trainer.Run(trainDS, testImages, numEpochs, stdout)
	if err != nil {
		return err
	}
	if err := autoencoder.SaveCheckpoint(checkpoint); err != nil {
		return err
	}

	if *flagSummary {
		_, _ = fmt.Fprintln(stdout, autoencoder.Summary(ctx))
	}
	if *flagPlot != "" {
		if err := autoencoder.PlotLosses(history, *flagPlot); err != nil {
			return err
		}
	}
	if *flagSamples != "" {
		numSamples := min(*flagNumSamples, testSet.Len())
		if numSamples <= 0 {
			klog.Warningf("No test images to save samples to %q", *flagSamples)
			return nil
		}
		indices := make([]int, numSamples)
		for i := range indices {
			indices[i] = i
		}
		if err := autoencoder.SaveSamples(backend, ctx, testSet.Tensor(indices), *flagSamples); err != nil {
			return err
		}
	}
	return nil
}
