package content

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with base 1024 and at most two
// decimals, e.g. 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}

	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}
