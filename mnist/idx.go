// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mnist reads the MNIST database of handwritten digits from its canonical IDX files
// and serves it as GoMLX datasets of normalized images.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

const (
	// Width and Height of the MNIST images.
	Width  = 28
	Height = 28

	// ImageSize is the number of pixels in one image.
	ImageSize = Width * Height

	imageMagic = 0x00000803
	labelMagic = 0x00000801

	gzipSuffix = ".gz"
)

// Split identifies one of the two MNIST partitions.
type Split string

const (
	Train Split = "train"
	Test  Split = "t10k"
)

// ImagesFile returns the uncompressed file name holding the images of the split.
func (s Split) ImagesFile() string { return string(s) + "-images-idx3-ubyte" }

// LabelsFile returns the uncompressed file name holding the labels of the split.
func (s Split) LabelsFile() string { return string(s) + "-labels-idx1-ubyte" }

type imageFileHeader struct {
	Magic     int32
	NumImages int32
	Height    int32
	Width     int32
}

type labelFileHeader struct {
	Magic     int32
	NumLabels int32
}

// Set holds all images of one split in memory, with their digit labels.
//
// Pixels are stored as read from the file, one byte per pixel, 0 being the background.
type Set struct {
	Split  Split
	Pixels []byte
	Labels []uint8
}

// Len returns the number of images in the set.
func (s *Set) Len() int { return len(s.Labels) }

// Image returns the raw pixels of the i-th image.
func (s *Set) Image(i int) []byte {
	return s.Pixels[i*ImageSize : (i+1)*ImageSize]
}

// CopyNormalized writes the pixels of the images at indices into dst, scaled to [0, 1].
// dst must have room for len(indices)*ImageSize values.
func (s *Set) CopyNormalized(dst []float32, indices []int) {
	for ii, idx := range indices {
		src := s.Image(idx)
		normalizePixels(dst[ii*ImageSize:(ii+1)*ImageSize], src)
	}
}

func normalizePixels[T constraints.Float](dst []T, pixels []byte) {
	for p, v := range pixels {
		dst[p] = T(v) / 255
	}
}

// Tensor returns the images at indices (all images if indices is nil) as a float32 tensor
// shaped [len(indices), Height, Width], with values in [0, 1].
func (s *Set) Tensor(indices []int) *tensors.Tensor {
	if indices == nil {
		indices = make([]int, s.Len())
		for i := range indices {
			indices[i] = i
		}
	}
	data := make([]float32, len(indices)*ImageSize)
	s.CopyNormalized(data, indices)
	return tensors.FromFlatDataAndDimensions(data, len(indices), Height, Width)
}

// LabelsTensor returns the digit labels at indices as an int32 tensor shaped [len(indices)].
func (s *Set) LabelsTensor(indices []int) *tensors.Tensor {
	data := make([]int32, len(indices))
	for ii, idx := range indices {
		data[ii] = int32(s.Labels[idx])
	}
	return tensors.FromFlatDataAndDimensions(data, len(indices))
}

// Load reads the images and labels of the split from dataDir.
//
// Each file may be present uncompressed (e.g. "train-images-idx3-ubyte") or gzipped
// (e.g. "train-images-idx3-ubyte.gz"); the uncompressed version is preferred.
func Load(dataDir string, split Split) (*Set, error) {
	dataDir, err := fsutil.ReplaceTildeInDir(dataDir)
	if err != nil {
		return nil, err
	}
	imagesPath, err := findFile(dataDir, split.ImagesFile())
	if err != nil {
		return nil, err
	}
	labelsPath, err := findFile(dataDir, split.LabelsFile())
	if err != nil {
		return nil, err
	}
	set := &Set{Split: split}
	set.Pixels, err = readIDXFile(imagesPath, readImages)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading MNIST %s images", split)
	}
	set.Labels, err = readIDXFile(labelsPath, readLabels)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading MNIST %s labels", split)
	}
	if len(set.Pixels) != len(set.Labels)*ImageSize {
		return nil, errors.Errorf("MNIST %s split has %d images but %d labels",
			split, len(set.Pixels)/ImageSize, len(set.Labels))
	}
	klog.V(1).Infof("Loaded MNIST %s split: %d images from %q", split, set.Len(), imagesPath)
	return set, nil
}

// findFile returns the path to name, or its gzipped version, in dir.
func findFile(dir, name string) (string, error) {
	for _, candidate := range []string{name, name + gzipSuffix} {
		filePath := path.Join(dir, candidate)
		exists, err := fsutil.FileExists(filePath)
		if err != nil {
			return "", err
		}
		if exists {
			return filePath, nil
		}
	}
	return "", errors.Errorf("MNIST file %q (or %q) not found in %q", name, name+gzipSuffix, dir)
}

func readIDXFile(filePath string, parse func(r io.Reader) ([]byte, error)) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var reader io.Reader = f
	if strings.HasSuffix(filePath, gzipSuffix) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decompress %q", filePath)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}
	contents, err := parse(reader)
	if err != nil {
		return nil, errors.WithMessagef(err, "file %q", filePath)
	}
	return contents, nil
}

func readImages(r io.Reader) ([]byte, error) {
	var header imageFileHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "reading images header")
	}
	if header.Magic != imageMagic {
		return nil, errors.Errorf("invalid images file magic number 0x%08x, expected 0x%08x", header.Magic, imageMagic)
	}
	if header.Height != Height || header.Width != Width {
		return nil, errors.Errorf("images are %dx%d, only %dx%d supported", header.Height, header.Width, Height, Width)
	}
	if header.NumImages < 0 {
		return nil, errors.Errorf("invalid number of images %d", header.NumImages)
	}
	pixels := make([]byte, int(header.NumImages)*ImageSize)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, errors.Wrapf(err, "reading %d images", header.NumImages)
	}
	return pixels, nil
}

func readLabels(r io.Reader) ([]byte, error) {
	var header labelFileHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "reading labels header")
	}
	if header.Magic != labelMagic {
		return nil, errors.Errorf("invalid labels file magic number 0x%08x, expected 0x%08x", header.Magic, labelMagic)
	}
	if header.NumLabels < 0 {
		return nil, errors.Errorf("invalid number of labels %d", header.NumLabels)
	}
	labels := make([]byte, header.NumLabels)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, errors.Wrapf(err, "reading %d labels", header.NumLabels)
	}
	return labels, nil
}
