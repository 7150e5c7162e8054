// Package conversation maintains the bounded multimodal history that is sent
// to the model each round.
package conversation

import "github.com/xkilldash9x/webpilot-cli/api/schemas"

// History is the ordered conversation log for one run. The orchestration
// loop is its only writer and reader; no locking is needed.
type History struct {
	turns []schemas.Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn at the end of the history.
func (h *History) Append(m schemas.Message) {
	h.turns = append(h.turns, m)
}

// Len returns the number of turns currently held.
func (h *History) Len() int { return len(h.turns) }

// Turns returns the full chronological history.
func (h *History) Turns() []schemas.Message { return h.turns }

// Prune returns the turns to send to the model, capped at maxImages
// image-bearing turns. It walks from most recent to oldest: turns without an
// image are always kept; turns with an image are kept until the running
// count of kept images reaches the cap, after which older image-bearing
// turns are dropped whole (image and co-located text together). The result
// preserves chronological order.
//
// A cap of zero yields an empty result: the per-turn coupling between image
// and text means no turns survive, including text-only ones newer than any
// dropped image turn.
func (h *History) Prune(maxImages int) []schemas.Message {
	if maxImages <= 0 {
		return nil
	}

	kept := make([]schemas.Message, 0, len(h.turns))
	imagesSeen := 0
	for i := len(h.turns) - 1; i >= 0; i-- {
		m := h.turns[i]
		if m.HasImage() {
			if imagesSeen >= maxImages {
				continue
			}
			imagesSeen++
		}
		kept = append(kept, m)
	}

	// Restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
