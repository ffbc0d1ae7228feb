package trace

import (
	"tracediff/internal/model"
)

// DefaultContextSize is the number of matching entries shown around a change.
const DefaultContextSize = 3

// GroupHunks splits an edit script into unified-diff style hunks.
//
// A hunk stays open while the current op is a change or the next op is a
// change, so it only closes in front of two consecutive matches. Changes
// separated by a single match share a hunk even when that stretches the hunk
// beyond contextSize. Trailing context is not consumed: when two hunks are
// close, the matches between them appear in both.
func GroupHunks(script []model.EditOp, contextSize int) []model.Hunk {
	if contextSize < 0 {
		contextSize = 0
	}

	var hunks []model.Hunk
	leftPos, rightPos := 0, 0 // entries of each side before script[i]
	i := 0
	for i < len(script) {
		if script[i].Kind == model.OpMatch {
			leftPos++
			rightPos++
			i++
			continue
		}

		lead := 0
		for lead < contextSize && i-lead-1 >= 0 && script[i-lead-1].Kind == model.OpMatch {
			lead++
		}

		start := i
		for i < len(script) && (script[i].Kind != model.OpMatch ||
			(i+1 < len(script) && script[i+1].Kind != model.OpMatch)) {
			i++
		}
		end := i

		trail := 0
		for trail < contextSize && end+trail < len(script) && script[end+trail].Kind == model.OpMatch {
			trail++
		}

		ops := make([]model.EditOp, 0, lead+(end-start)+trail)
		ops = append(ops, script[start-lead:end+trail]...)
		hunks = append(hunks, model.Hunk{
			LeftStart:  leftPos - lead,
			RightStart: rightPos - lead,
			Ops:        ops,
		})

		for _, op := range script[start:end] {
			switch op.Kind {
			case model.OpMatch:
				leftPos++
				rightPos++
			case model.OpLeftOnly:
				leftPos++
			case model.OpRightOnly:
				rightPos++
			}
		}
	}
	return hunks
}
