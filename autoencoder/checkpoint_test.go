// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"bytes"
	"math/rand"
	"os"
	"path"
	"testing"

	"github.com/gomlx/autoencoder/mnist"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointMissingIsCreated(t *testing.T) {
	backend := buildTestBackend(t)
	dir := path.Join(t.TempDir(), "model")
	ctx := newTestContext(10)
	var out bytes.Buffer
	handler, err := LoadCheckpoint(ctx, dir, &out)
	require.NoError(t, err)
	require.NotNil(t, handler)
	assert.Empty(t, out.String(), "nothing should be reported when there is no checkpoint")
	hasCheckpoints, err := handler.HasCheckpoints()
	require.NoError(t, err)
	assert.False(t, hasCheckpoints)

	trainer := must.M1(NewTrainer(backend, ctx))
	_, err = trainer.Run(mnist.NewDataset("train", syntheticSet(64, 11), 64, nil), nil, 1, &out)
	require.NoError(t, err)
	require.NoError(t, SaveCheckpoint(handler))

	hasCheckpoints, err = handler.HasCheckpoints()
	require.NoError(t, err)
	assert.True(t, hasCheckpoints, "a checkpoint should be created at the end")
}

func TestCheckpointRoundTrip(t *testing.T) {
	backend := buildTestBackend(t)
	dir := path.Join(t.TempDir(), "model")
	images := syntheticSet(4, 12).Tensor(nil)

	// Train for one epoch and save.
	ctx := newTestContext(13)
	handler := must.M1(LoadCheckpoint(ctx, dir, &bytes.Buffer{}))
	trainer := must.M1(NewTrainer(backend, ctx))
	trainDS := mnist.NewDataset("train", syntheticSet(128, 14), 64, rand.New(rand.NewSource(14)))
	_, err := trainer.Run(trainDS, images, 1, &bytes.Buffer{})
	require.NoError(t, err)
	want := tensors.MustCopyFlatData[float32](must.M1(Reconstruct(backend, ctx, images)))
	require.NoError(t, SaveCheckpoint(handler))

	// Fresh context with a different initialization seed, loaded from the checkpoint.
	loadedCtx := newTestContext(99)
	var out bytes.Buffer
	_, err = LoadCheckpoint(loadedCtx, dir, &out)
	require.NoError(t, err)
	assert.Equal(t, "Loaded existing model from "+dir+"\n", out.String())
	got := tensors.MustCopyFlatData[float32](must.M1(Reconstruct(backend, loadedCtx, images)))
	assert.InDeltaSlice(t, want, got, 1e-6)
	assert.Equal(t, int64(0), optimizers.GetGlobalStep(loadedCtx), "optimizer state starts afresh")

	// A context that isn't loaded differs.
	fresh := tensors.MustCopyFlatData[float32](must.M1(Reconstruct(backend, newTestContext(99), images)))
	assert.NotEqual(t, want, fresh)
}

func TestCheckpointCorrupt(t *testing.T) {
	dir := t.TempDir()
	corrupt := path.Join(dir, "checkpoint-n0000001-20240101-000000-step-00000001.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not valid json"), 0644))
	_, err := LoadCheckpoint(newTestContext(15), dir, &bytes.Buffer{})
	require.Error(t, err)
}

func TestCheckpointDisabled(t *testing.T) {
	handler, err := LoadCheckpoint(newTestContext(16), "", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Nil(t, handler)
	assert.NoError(t, SaveCheckpoint(handler))
}

func TestCheckpointResumeWithNewLearningRate(t *testing.T) {
	backend := buildTestBackend(t)
	dir := path.Join(t.TempDir(), "model")
	trainDS := mnist.NewDataset("train", syntheticSet(128, 17), 64, nil)

	ctx := newTestContext(17)
	handler := must.M1(LoadCheckpoint(ctx, dir, &bytes.Buffer{}))
	trainer := must.M1(NewTrainer(backend, ctx))
	_, err := trainer.Run(trainDS, nil, 2, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, int64(4), optimizers.GetGlobalStep(ctx))
	require.NoError(t, SaveCheckpoint(handler))

	resumedCtx := newTestContext(17)
	resumedCtx.SetParam(optimizers.ParamLearningRate, 0.5)
	_ = must.M1(LoadCheckpoint(resumedCtx, dir, &bytes.Buffer{}))
	trainer = must.M1(NewTrainer(backend, resumedCtx))
	_, err = trainer.Run(trainDS, nil, 1, &bytes.Buffer{})
	require.NoError(t, err)

	lrVar := resumedCtx.GetVariableByScopeAndName(context.ScopeSeparator+optimizers.Scope, optimizers.ParamLearningRate)
	require.NotNil(t, lrVar)
	assert.InDelta(t, 0.5, tensors.ToScalar[float32](lrVar.MustValue()), 1e-6, "learning rate comes from the context")
	assert.Equal(t, int64(2), optimizers.GetGlobalStep(resumedCtx), "global step restarts on resume")
}

func TestCheckpointIncompatibleShapes(t *testing.T) {
	dir := path.Join(t.TempDir(), "model")
	ctx := newTestContext(18)
	handler := must.M1(LoadCheckpoint(ctx, dir, &bytes.Buffer{}))
	ctx.In(EncoderScope).In("l1").In("dense").VariableWithValue("weights", [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, SaveCheckpoint(handler))

	loadedCtx := newTestContext(18)
	_, err := LoadCheckpoint(loadedCtx, dir, &bytes.Buffer{})
	require.NoError(t, err, "shapes are only checked when the model declares its variables")
	trainer := must.M1(NewTrainer(buildTestBackend(t), loadedCtx))
	_, err = trainer.Run(mnist.NewDataset("train", syntheticSet(64, 19), 64, nil), nil, 1, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
	assert.Contains(t, err.Error(), "/encoder/l1/dense")
}
