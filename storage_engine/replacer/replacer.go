package replacer

import (
	"BTreeStore/storage_engine/page"
	"fmt"
)

/*
This file is the LRU-K replacement policy used by the buffer pool.

The replacer only tracks frame ids. The pool reports every access (RecordAccess) and
flips frames evictable when their pin count drops to zero. Evict hands back the frame
with the largest backward k-distance and forgets its history.

Passing a frame id outside [0, numFrames) or removing a pinned frame is a caller bug
and panics.
*/

func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	if k < 1 {
		k = 1
	}
	return &LRUKReplacer{
		nodes:        make(map[page.FrameID]*lrukNode, numFrames),
		replacerSize: numFrames,
		k:            k,
	}
}

// RecordAccess stamps frameID with the next logical timestamp.
func (r *LRUKReplacer) RecordAccess(frameID page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkFrame(frameID)
	r.currentTimestamp++

	node, ok := r.nodes[frameID]
	if !ok {
		node = &lrukNode{history: make([]uint64, 0, r.k)}
		r.nodes[frameID] = node
	}
	if len(node.history) == r.k {
		copy(node.history, node.history[1:])
		node.history = node.history[:r.k-1]
	}
	node.history = append(node.history, r.currentTimestamp)
}

// SetEvictable toggles whether frameID may be chosen by Evict. Unknown frames are ignored.
func (r *LRUKReplacer) SetEvictable(frameID page.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkFrame(frameID)
	node, ok := r.nodes[frameID]
	if !ok || node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		r.evictableSize++
	} else {
		r.evictableSize--
	}
}

// Evict removes and returns the evictable frame with the largest backward
// k-distance. ok is false when nothing is evictable.
func (r *LRUKReplacer) Evict() (page.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	victim := page.InvalidFrameID
	victimInf := false
	var victimOldest uint64

	for frameID, node := range r.nodes {
		if !node.evictable {
			continue
		}
		inf := len(node.history) < r.k
		// history[0] is the k-th most recent access once the history is full,
		// so the smallest one is also the largest k-distance.
		oldest := node.history[0]

		switch {
		case victim == page.InvalidFrameID:
		case inf && !victimInf:
		case inf == victimInf && oldest < victimOldest:
		default:
			continue
		}
		victim, victimInf, victimOldest = frameID, inf, oldest
	}

	if victim == page.InvalidFrameID {
		return page.InvalidFrameID, false
	}
	delete(r.nodes, victim)
	r.evictableSize--
	return victim, true
}

// Remove drops the history of an evictable frame. Unknown frames are ignored.
func (r *LRUKReplacer) Remove(frameID page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkFrame(frameID)
	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if !node.evictable {
		panic(fmt.Sprintf("replacer: remove of non-evictable frame %d", frameID))
	}
	delete(r.nodes, frameID)
	r.evictableSize--
}

// Size is the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableSize
}

// Clean forgets every frame and resets the clock.
func (r *LRUKReplacer) Clean() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes = make(map[page.FrameID]*lrukNode, r.replacerSize)
	r.currentTimestamp = 0
	r.evictableSize = 0
}

func (r *LRUKReplacer) checkFrame(frameID page.FrameID) {
	if frameID < 0 || int(frameID) >= r.replacerSize {
		panic(fmt.Sprintf("replacer: invalid frame id %d (size %d)", frameID, r.replacerSize))
	}
}
