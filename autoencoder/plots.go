// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	trainLossColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	testLossColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// lossPoints returns one point per epoch (1-based), skipping undefined (NaN) losses.
func lossPoints(losses []float64) plotter.XYs {
	points := make(plotter.XYs, 0, len(losses))
	for ii, loss := range losses {
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			continue
		}
		points = append(points, plotter.XY{X: float64(ii + 1), Y: loss})
	}
	return points
}

// PlotLosses saves to filePath a plot of the training (cross-entropy) and test (mean squared error)
// losses per epoch. The image format is taken from the file extension (e.g.: ".png", ".svg").
func PlotLosses(history *History, filePath string) error {
	p := plot.New()
	p.Title.Text = "Autoencoder losses"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	series := []struct {
		name   string
		losses []float64
		color  color.Color
	}{
		{"train (cross-entropy)", history.TrainLoss, trainLossColor},
		{"test (mean squared error)", history.TestLoss, testLossColor},
	}
	for _, s := range series {
		points := lossPoints(s.losses)
		if len(points) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(points)
		if err != nil {
			return errors.Wrapf(err, "plotting %s loss", s.name)
		}
		line.Color = s.color
		scatter.Color = s.color
		p.Add(line, scatter)
		p.Legend.Add(s.name, line, scatter)
	}
	p.Legend.Top = true
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "saving losses plot to %q", filePath)
	}
	return nil
}
