package embedding

import "math"

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func log32(x float32) float32 {
	return float32(math.Log(float64(x)))
}
