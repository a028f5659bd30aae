// Package postprocess - provides class-wise Non-Maximum Suppression for detection results.
package postprocess

import (
	"cmp"
	"slices"
	"sync"

	"github.com/nvr-ai/narrator/images"
)

// DefaultIoUThreshold is the overlap above which a same-class detection is suppressed.
const DefaultIoUThreshold = 0.5

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iouThreshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	NumWorkers   int     `json:"numWorkers" yaml:"workers"`         // Number of goroutines processing classes in parallel.
}

// DefaultNMSConfig returns the default suppression parameters.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold: DefaultIoUThreshold,
		NumWorkers:   1,
	}
}

// ApplyClassNMS removes redundant overlapping detections within each class.
//
// Detections are partitioned by ClassID. Each partition is stably sorted by
// descending confidence (equal confidences keep their input order) and walked
// greedily: a detection is kept only if its IoU with every detection already
// kept for that class is <= IoUThreshold. Classes are independent; when
// NumWorkers > 1 they are processed concurrently.
//
// Arguments:
//   - detections: Unfiltered detections, in decode order. Not modified.
//   - config: NMS configuration.
//
// Returns:
//   - The kept detections, grouped by class, classes in the order they were
//     first encountered. Returns nil if no detections are provided.
func ApplyClassNMS(detections []Detection, config NMSConfig) []Detection {
	if len(detections) == 0 {
		return nil
	}

	// Partition by class, remembering first-seen order.
	groupIndex := make(map[int]int)
	var groups [][]Detection
	for _, d := range detections {
		gi, ok := groupIndex[d.ClassID]
		if !ok {
			gi = len(groups)
			groupIndex[d.ClassID] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], d)
	}

	kept := make([][]Detection, len(groups))

	workers := min(config.NumWorkers, len(groups))
	if workers <= 1 {
		for gi, group := range groups {
			kept[gi] = ApplyGreedyNMS(group, config.IoUThreshold)
		}
	} else {
		// Worker pool over class partitions. Each worker writes only its own
		// slot of kept, so no further locking is needed.
		jobs := make(chan int, len(groups))
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for gi := range jobs {
					kept[gi] = ApplyGreedyNMS(groups[gi], config.IoUThreshold)
				}
			}()
		}
		for gi := range groups {
			jobs <- gi
		}
		close(jobs)
		wg.Wait()
	}

	filtered := make([]Detection, 0, len(detections))
	for _, k := range kept {
		filtered = append(filtered, k...)
	}
	return filtered
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression on one class.
//
// Arguments:
//   - detections: Detections of a single class, in any order. Not modified.
//   - iouThreshold: IoU threshold above which overlapping boxes are suppressed.
//
// Returns:
//   - The kept detections, in descending confidence order.
func ApplyGreedyNMS(detections []Detection, iouThreshold float32) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := slices.Clone(detections)
	slices.SortStableFunc(sorted, func(a, b Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	filtered := make([]Detection, 0, n)
	for _, candidate := range sorted {
		keep := true
		for _, anchor := range filtered {
			if images.CalculateIoU(candidate.Box, anchor.Box) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, candidate)
		}
	}

	return filtered
}
