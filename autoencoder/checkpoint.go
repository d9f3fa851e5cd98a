// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoadCheckpoint attaches a checkpoint handler for dir to ctx.
//
// If dir holds a checkpoint, its variables are loaded into ctx, taking precedence over the
// initial values of the variables the model declares, and "Loaded existing model from <dir>" is
// printed to out. A checkpoint that can't be parsed is an error: there is no fallback to freshly
// initialized variables. If dir doesn't exist it is created, and training starts from scratch.
//
// Only the model variables (under the encoder and decoder scopes) are loaded. Hyperparameters and
// the optimizer state (learning rate, moments, global step) start afresh, so the hyperparameters
// in ctx (defaults plus command-line settings) prevail.
//
// Call Handler.Save on the returned handler to save ctx at the end of training.
// If dir is empty, checkpointing is disabled and it returns a nil handler (Save on a nil handler is a no-op).
func LoadCheckpoint(ctx *context.Context, dir string, out io.Writer) (*checkpoints.Handler, error) {
	if dir == "" {
		return nil, nil
	}
	handler, err := checkpoints.Build(ctx).Dir(dir).Keep(1).ExcludeAllParams().Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load checkpoint from %q", dir)
	}
	for _, paramName := range slices.Collect(maps.Keys(handler.LoadedVariables())) {
		scope, name := context.VariableScopeAndNameFromParameterName(paramName)
		if isModelScope(scope) {
			continue
		}
		if err := handler.DeleteVariable(ctx, scope, name); err != nil {
			return nil, errors.WithMessagef(err, "failed to skip variable %q from checkpoint %q", paramName, dir)
		}
	}
	loaded, err := handler.HasCheckpoints()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to list checkpoints in %q", dir)
	}
	if loaded {
		_, _ = fmt.Fprintf(out, "Loaded existing model from %s\n", dir)
		klog.V(1).Infof("Checkpoint handler: %s", handler)
	}
	return handler, nil
}

// SaveCheckpoint saves all variables in the context attached to handler, replacing the previous checkpoint.
// It's a no-op if handler is nil.
func SaveCheckpoint(handler *checkpoints.Handler) error {
	if handler == nil {
		return nil
	}
	if err := handler.Save(); err != nil {
		return errors.WithMessagef(err, "failed to save checkpoint to %q", handler.Dir())
	}
	klog.V(1).Infof("Saved checkpoint to %q", handler.Dir())
	return nil
}
