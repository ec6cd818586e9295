package chart

import (
	"bytes"
	"fmt"
	"math"
)

// Braille blocks, 4 sub-blocks high: empty, 1/4, 1/2, 3/4, full
var brailleBlocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

// Sparkline renders values as a multi-line Braille bar chart with a zero baseline
func Sparkline(values []float64, height int) string {
	if len(values) == 0 || height <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1 // Avoid division by zero
	}

	subBlocksPerLine := float64(len(brailleBlocks) - 1)
	full := brailleBlocks[len(brailleBlocks)-1]

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = make([]rune, len(values))
		for j := range rows[i] {
			rows[i][j] = brailleBlocks[0]
		}
	}

	for x, val := range values {
		totalSubBlocks := math.Max(val, 0) / maxVal * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if totalSubBlocks >= lineEnd {
				rows[lineIdx][x] = full
			} else if totalSubBlocks > lineStart {
				remainder := int(math.Round(totalSubBlocks - lineStart))
				if remainder < 1 {
					remainder = 1 // Keep tiny non-zero bars visible
				}
				rows[lineIdx][x] = brailleBlocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	result.WriteString(fmt.Sprintf("Max: %.1fg\n", maxVal))
	for i := 0; i < height; i++ {
		result.WriteString(string(rows[i]))
		result.WriteString("\n")
	}
	result.WriteString("Min: 0g")

	return result.String()
}
