package analysis

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/robpineda/voiceonstudio/pkg/types"
)

// Finalize orders approved segments for the audio-cutting stage: stable sort
// by ascending start, ties broken by ascending end. The input is not
// modified. Overlapping segments are passed through untouched; overlap is a
// data-quality signal for the human reviewer, not something to resolve
// silently.
//
// Returns [ErrNoSegments] when given nothing to order; callers invoke
// Finalize only after confirming segments exist.
func Finalize(segments []types.Segment) ([]types.Segment, error) {
	if len(segments) == 0 {
		return nil, &StageError{Stage: StageFinalize, Err: ErrNoSegments}
	}
	out := slices.Clone(segments)
	slices.SortStableFunc(out, func(a, b types.Segment) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.End, b.End),
		)
	})
	return out, nil
}

// CropAndCombine will cut the approved segments out of the source audio and
// concatenate them into one polished file. It exists as a stable contract
// point; the audio-cutting implementation is future work.
func CropAndCombine(ctx context.Context, audio []byte, segments []types.Segment) ([]byte, error) {
	return nil, fmt.Errorf("%w: crop and combine", ErrNotImplemented)
}
