// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// DownloadURL is the mirror the gzipped IDX files are fetched from.
var DownloadURL = "https://storage.googleapis.com/cvdf-datasets/mnist"

// Download fetches the gzipped MNIST files into dataDir, skipping the ones already
// present either compressed or uncompressed.
func Download(dataDir string, showProgressBar bool) error {
	dataDir, err := fsutil.ReplaceTildeInDir(dataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0777); err != nil {
		return errors.Wrapf(err, "failed to create data directory %q", dataDir)
	}
	for _, split := range []Split{Train, Test} {
		for _, name := range []string{split.ImagesFile(), split.LabelsFile()} {
			if _, err := findFile(dataDir, name); err == nil {
				continue
			}
			fileURL, err := url.JoinPath(DownloadURL, name+gzipSuffix)
			if err != nil {
				return errors.Wrapf(err, "invalid download URL %q", DownloadURL)
			}
			filePath := path.Join(dataDir, name+gzipSuffix)
			size, err := downloadFile(fileURL, filePath, showProgressBar)
			if err != nil {
				return err
			}
			klog.Infof("Downloaded %q: %s", filePath, humanize.Bytes(uint64(size)))
		}
	}
	return nil
}

// downloadFile writes the contents of fileURL to filePath. A partially written file is removed on failure.
func downloadFile(fileURL, filePath string, showProgressBar bool) (size int64, err error) {
	resp, err := http.Get(fileURL)
	if err != nil {
		return 0, errors.Wrapf(err, "failed downloading %q", fileURL)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("failed downloading %q: %s", fileURL, resp.Status)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed creating file %q", filePath)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(filePath)
		}
	}()

	var w io.Writer = file
	if showProgressBar {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(path.Base(filePath)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
			progressbar.OptionOnCompletion(func() { _, _ = os.Stderr.WriteString("\n") }),
		)
		defer func() { _ = bar.Close() }()
		w = io.MultiWriter(file, bar)
	}
	size, err = io.Copy(w, resp.Body)
	if err != nil {
		return 0, errors.Wrapf(err, "downloading %q to %q", fileURL, filePath)
	}
	if err = file.Close(); err != nil {
		return 0, errors.Wrapf(err, "failed closing %q", filePath)
	}
	return size, nil
}
