package postprocess

import (
	"math/rand"
	"testing"
)

func BenchmarkApplyClassNMS(b *testing.B) {
	for _, bc := range []struct {
		name    string
		n       int
		workers int
	}{
		{name: "100/sequential", n: 100, workers: 1},
		{name: "1000/sequential", n: 1000, workers: 1},
		{name: "1000/workers-4", n: 1000, workers: 4},
	} {
		b.Run(bc.name, func(b *testing.B) {
			dets := randomDetections(rand.New(rand.NewSource(1)), bc.n, 8)
			cfg := NMSConfig{IoUThreshold: DefaultIoUThreshold, NumWorkers: bc.workers}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ApplyClassNMS(dets, cfg)
			}
		})
	}
}
