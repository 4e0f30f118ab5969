package repository

import "math/rand/v2"

// Treap-backed ranked set.
//
// Ordering: score DESC, then member ASC. "less" means ranks earlier, so an
// in-order traversal yields the leaderboard from best to worst. Priorities
// are random, which keeps the expected depth logarithmic regardless of the
// score distribution.

type node struct {
	id    string
	score int64
	prio  uint64
	left  *node
	right *node
	size  int64
}

func nsize(n *node) int64 {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aScore int64, aID string, bScore int64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int64, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectRange appends the members ranked lo..hi (inclusive, relative to
// the subtree rooted at n) in rank order.
func collectRange(n *node, lo, hi int64, out *[]Member) {
	if n == nil || lo > hi {
		return
	}
	ls := nsize(n.left)
	if lo < ls {
		collectRange(n.left, lo, min(hi, ls-1), out)
	}
	if lo <= ls && ls <= hi {
		*out = append(*out, Member{ID: n.id, Score: n.score})
	}
	if hi > ls {
		collectRange(n.right, max(lo-ls-1, 0), hi-ls-1, out)
	}
}

type rankedSet struct {
	root   *node
	scores map[string]int64
	rng    *rand.Rand
}

func newRankedSet(rng *rand.Rand) *rankedSet {
	return &rankedSet{scores: make(map[string]int64), rng: rng}
}

func (z *rankedSet) incr(member string, delta int64) (int64, error) {
	old, ok := z.scores[member]
	next, err := addChecked(old, delta)
	if err != nil {
		return 0, err
	}
	if ok {
		z.root = deleteNode(z.root, member, old)
	}
	z.scores[member] = next
	z.root = insert(z.root, member, next, z.rng.Uint64())
	return next, nil
}

func (z *rankedSet) card() int64 {
	return nsize(z.root)
}

// revRange resolves start/stop the way Redis does (negative indexes count
// from the end, out-of-range bounds are clamped) and returns the slice.
func (z *rankedSet) revRange(start, stop int64) []Member {
	n := z.card()
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []Member{}
	}
	out := make([]Member, 0, stop-start+1)
	collectRange(z.root, start, stop, &out)
	return out
}

func addChecked(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}
