// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// AcceleratedBackendConfig is tried first when no backend is configured.
	AcceleratedBackendConfig = "xla:cuda"

	// FallbackBackendConfig is the pure Go backend, always available.
	FallbackBackendConfig = "go"
)

// newBackend converts panics from backend constructors into errors.
func newBackend(config string) (backend backends.Backend, err error) {
	panicErr := exceptions.TryCatch[error](func() {
		if config == "" {
			backend, err = backends.New()
		} else {
			backend, err = backends.NewWithConfig(config)
		}
	})
	if panicErr != nil {
		return nil, panicErr
	}
	if err == nil && backend == nil {
		err = errors.Errorf("backend %q not available", config)
	}
	return
}

// SelectBackend returns the backend to train on.
//
// If config is empty, it prefers a CUDA device and otherwise falls back to the default backend
// (see backends.New) or, failing that, to the pure Go backend. Absence of acceleration is not an error.
// If config is given (e.g.: "xla:cpu", "go"), exactly that backend is used.
//
// It prints "Running on CUDA" to stdout or "Running on CPU" to stderr.
func SelectBackend(config string, stdout, stderr io.Writer) (backends.Backend, error) {
	if config != "" {
		backend, err := newBackend(config)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create backend %q", config)
		}
		reportDevice(strings.Contains(config, "cuda"), stdout, stderr)
		return backend, nil
	}

	backend, err := newBackend(AcceleratedBackendConfig)
	if err == nil {
		reportDevice(true, stdout, stderr)
		return backend, nil
	}
	klog.V(1).Infof("Accelerated backend %q not available: %v", AcceleratedBackendConfig, err)
	backend, err = newBackend("")
	if err != nil {
		klog.Warningf("Default backend not available, using %q: %v", FallbackBackendConfig, err)
		backend, err = newBackend(FallbackBackendConfig)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create fallback backend %q", FallbackBackendConfig)
		}
	}
	reportDevice(false, stdout, stderr)
	return backend, nil
}

func reportDevice(accelerated bool, stdout, stderr io.Writer) {
	if accelerated {
		_, _ = fmt.Fprintln(stdout, "Running on CUDA")
	} else {
		_, _ = fmt.Fprintln(stderr, "Running on CPU")
	}
}
