package forest

import (
	"cmp"
	"slices"
)

// leafFeature marks a node without a split.
const leafFeature = -1

// Node is one entry of a flattened regression tree. Internal nodes send
// x[Feature] <= Threshold to Left and everything else to Right.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
}

// Tree is a CART regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for x.
func (t *Tree) Predict(x []float64) float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Feature == leafFeature {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int32) int
	walk = func(i int32) int {
		n := t.Nodes[i]
		if n.Feature == leafFeature {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	width    int
	maxDepth int
	minLeaf  int
	nodes    []Node
}

func growTree(x [][]float64, y []float64, idx []int, maxDepth, minLeaf int) Tree {
	b := &treeBuilder{
		x:        x,
		y:        y,
		width:    len(x[0]),
		maxDepth: maxDepth,
		minLeaf:  minLeaf,
	}
	b.build(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int32 {
	self := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: leafFeature, Value: b.mean(idx)})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf || b.constant(idx) {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// bestSplit searches every feature for the boundary with the lowest summed
// squared error, which is the one maximising sumL²/nL + sumR²/nR.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}
	parentScore := total * total / float64(n)

	bestFeature, bestThreshold, bestScore := -1, 0.0, parentScore
	sorted := make([]int, n)
	for f := 0; f < b.width; f++ {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, c int) int {
			return cmp.Compare(b.x[a][f], b.x[c][f])
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.y[sorted[k-1]]
			if k < b.minLeaf || n-k < b.minLeaf {
				continue
			}
			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if score > bestScore {
				mid := lo + (hi-lo)/2
				if mid >= hi {
					mid = lo
				}
				bestFeature, bestThreshold, bestScore = f, mid, score
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

func (b *treeBuilder) constant(idx []int) bool {
	for _, i := range idx[1:] {
		if b.y[i] != b.y[idx[0]] {
			return false
		}
	}
	return true
}
