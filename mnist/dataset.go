// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// Dataset yields batches of images from a Set, implementing train.Dataset.
//
// Each epoch (between calls to Reset) visits every image at most once. The images are
// reshuffled on every Reset if a random source was given, and the last incomplete batch is
// dropped.
type Dataset struct {
	name      string
	set       *Set
	batchSize int
	rng       *rand.Rand

	order    []int
	position int
}

var _ train.Dataset = (*Dataset)(nil)

// NewDataset creates a dataset over set yielding batches of batchSize images.
// If rng is nil, images are yielded in file order.
func NewDataset(name string, set *Set, batchSize int, rng *rand.Rand) *Dataset {
	if batchSize <= 0 {
		panic(fmt.Sprintf("mnist.NewDataset(%q): batchSize must be > 0, got %d", name, batchSize))
	}
	ds := &Dataset{
		name:      name,
		set:       set,
		batchSize: batchSize,
		rng:       rng,
		order:     make([]int, set.Len()),
	}
	for i := range ds.order {
		ds.order[i] = i
	}
	ds.Reset()
	return ds
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// BatchSize returns the number of images per batch.
func (ds *Dataset) BatchSize() int { return ds.batchSize }

// NumBatches returns the number of batches yielded per epoch.
func (ds *Dataset) NumBatches() int { return len(ds.order) / ds.batchSize }

// Reset implements train.Dataset. It restarts the epoch, reshuffling the images if a
// random source is configured.
func (ds *Dataset) Reset() {
	ds.position = 0
	if ds.rng != nil {
		ds.rng.Shuffle(len(ds.order), func(i, j int) {
			ds.order[i], ds.order[j] = ds.order[j], ds.order[i]
		})
	}
}

// Yield implements train.Dataset. It returns:
//
//   - spec: nil.
//   - inputs: the images batch as float32 in [0, 1], shaped [batch_size, Height, Width].
//   - labels: the digit labels as int32, shaped [batch_size]. The autoencoder does not use them.
//
// It returns io.EOF at the end of the epoch.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if ds.position+ds.batchSize > len(ds.order) {
		return nil, nil, nil, io.EOF
	}
	indices := ds.order[ds.position : ds.position+ds.batchSize]
	ds.position += ds.batchSize
	inputs = []*tensors.Tensor{ds.set.Tensor(indices)}
	labels = []*tensors.Tensor{ds.set.LabelsTensor(indices)}
	return
}
