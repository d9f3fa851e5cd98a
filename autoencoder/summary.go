// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autoencoder

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
	headerRowStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2).Align(lipgloss.Center)
	oddRowStyle    = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	evenRowStyle   = lipgloss.NewStyle().Faint(true).PaddingLeft(1).PaddingRight(1)
)

func newTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = evenRowStyle
			} else {
				s = oddRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			}
			return
		})
}

// Summary renders tables with the model sizes, the global step and the model variables
// (the ones under the encoder and decoder scopes) of ctx.
//
// Variables are only listed after the model graph was built at least once.
func Summary(ctx *context.Context) string {
	var numVars, numParams int
	var memory uintptr
	var rows [][]string
	for v := range ctx.IterVariables() {
		scope := v.Scope()
		if !isModelScope(scope) {
			continue
		}
		shape := v.Shape()
		numVars++
		numParams += shape.Size()
		memory += shape.Memory()
		rows = append(rows, []string{
			scope, v.Name(), shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())),
		})
	}
	slices.SortFunc(rows, func(a, b []string) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})

	var parts []string
	parts = append(parts, titleStyle.Render("Model"))
	summary := newTable()
	summary.Row("global_step", humanize.Comma(optimizers.GetGlobalStep(ctx)))
	summary.Row("# variables", humanize.Comma(int64(numVars)))
	summary.Row("# parameters", humanize.Comma(int64(numParams)))
	summary.Row("# bytes", humanize.Bytes(uint64(memory)))
	parts = append(parts, summary.Render())

	if len(rows) > 0 {
		parts = append(parts, titleStyle.Render("Variables"))
		variables := newTable().Headers("Scope", "Name", "Shape", "Size", "Bytes")
		for _, row := range rows {
			variables.Row(row...)
		}
		parts = append(parts, variables.Render())
	}
	return strings.Join(parts, "\n")
}

func isModelScope(scope string) bool {
	for _, prefix := range []string{EncoderScope, DecoderScope} {
		root := context.ScopeSeparator + prefix
		if scope == root || strings.HasPrefix(scope, root+context.ScopeSeparator) {
			return true
		}
	}
	return false
}
