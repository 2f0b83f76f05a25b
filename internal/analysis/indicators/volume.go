package indicators

import (
	"nse-screener/internal/models"
)

// AverageVolume returns the mean volume over the last n candles.
func AverageVolume(candles []models.Candle, n int) float64 {
	window := tail(candles, n)
	if len(window) == 0 {
		return 0
	}
	var total int64
	for _, c := range window {
		total += c.Volume
	}
	return float64(total) / float64(len(window))
}

// VolumeRatio compares the last candle's volume with the average of the n
// candles before it.
func VolumeRatio(candles []models.Candle, n int) float64 {
	if len(candles) < 2 {
		return 0
	}
	avg := AverageVolume(candles[:len(candles)-1], n)
	if avg == 0 {
		return 0
	}
	return float64(candles[len(candles)-1].Volume) / avg
}

// RisingVolume reports whether volume increased on each of the last n candles.
func RisingVolume(candles []models.Candle, n int) bool {
	if len(candles) < n+1 {
		return false
	}
	window := tail(candles, n+1)
	for i := 1; i < len(window); i++ {
		if window[i].Volume <= window[i-1].Volume {
			return false
		}
	}
	return true
}
