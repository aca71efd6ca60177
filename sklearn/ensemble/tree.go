package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// NodeType distinguishes leaves from split nodes.
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with a numerical split (x <= Threshold goes left)
	NumericalNode
)

// Node represents a single node in a regression tree.
type Node struct {
	LeftChild  int // -1 for leaves
	RightChild int // -1 for leaves
	NodeType   NodeType

	SplitFeature int
	Threshold    float64
	Gain         float64

	LeafValue float64
	Count     int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one second-order regression tree of the ensemble. Nodes[0] is the root.
type Tree struct {
	Nodes         []Node
	ShrinkageRate float64
}

// Predict returns the shrunken leaf value for one sample.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		// NaN compares false and goes right
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// Depth returns the number of split levels on the longest path.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.LeftChild), walk(n.RightChild))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// treeParams are the growth limits shared by all trees of an ensemble.
type treeParams struct {
	maxDepth       int
	minSamplesLeaf int
	lambda         float64
	minGainToSplit float64
	shrinkage      float64
}

// splitInfo describes a candidate split.
type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

// treeBuilder grows one tree on fixed gradients and hessians.
type treeBuilder struct {
	params    treeParams
	X         *mat.Dense
	gradients []float64
	hessians  []float64
	tree      *Tree

	// importance accumulates split gain per feature
	importance []float64
}

func newTreeBuilder(params treeParams, X *mat.Dense, gradients, hessians []float64) *treeBuilder {
	_, cols := X.Dims()
	return &treeBuilder{
		params:     params,
		X:          X,
		gradients:  gradients,
		hessians:   hessians,
		tree:       &Tree{ShrinkageRate: params.shrinkage},
		importance: make([]float64, cols),
	}
}

// build grows the tree from all rows.
func (b *treeBuilder) build() *Tree {
	rows, _ := b.X.Dims()
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	b.buildNode(indices, 0)
	return b.tree
}

func (b *treeBuilder) buildNode(indices []int, depth int) int {
	nodeIdx := len(b.tree.Nodes)

	if depth >= b.params.maxDepth || len(indices) < 2*b.params.minSamplesLeaf {
		return b.addLeaf(indices)
	}

	best := b.findBestSplit(indices)
	if best.feature < 0 || best.gain <= b.params.minGainToSplit {
		return b.addLeaf(indices)
	}

	b.tree.Nodes = append(b.tree.Nodes, Node{
		NodeType:     NumericalNode,
		SplitFeature: best.feature,
		Threshold:    best.threshold,
		Gain:         best.gain,
		Count:        len(indices),
	})
	b.importance[best.feature] += best.gain

	left, right := b.splitData(indices, best)
	leftChild := b.buildNode(left, depth+1)
	rightChild := b.buildNode(right, depth+1)

	b.tree.Nodes[nodeIdx].LeftChild = leftChild
	b.tree.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

func (b *treeBuilder) addLeaf(indices []int) int {
	nodeIdx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		LeftChild:  -1,
		RightChild: -1,
		NodeType:   LeafNode,
		LeafValue:  b.leafValue(indices),
		Count:      len(indices),
	})
	return nodeIdx
}

// findBestSplit scans every feature; ties keep the earlier feature and threshold.
func (b *treeBuilder) findBestSplit(indices []int) splitInfo {
	_, cols := b.X.Dims()
	best := splitInfo{feature: -1, gain: -math.MaxFloat64}
	for j := 0; j < cols; j++ {
		if split := b.findBestSplitForFeature(indices, j); split.gain > best.gain {
			best = split
		}
	}
	return best
}

func (b *treeBuilder) findBestSplitForFeature(indices []int, feature int) splitInfo {
	type entry struct {
		value float64
		idx   int
	}
	values := make([]entry, len(indices))
	for i, idx := range indices {
		values[i] = entry{value: b.X.At(idx, feature), idx: idx}
	}
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].value < values[j].value
	})

	totalGrad, totalHess := 0.0, 0.0
	for _, idx := range indices {
		totalGrad += b.gradients[idx]
		totalHess += b.hessians[idx]
	}

	best := splitInfo{feature: -1, gain: -math.MaxFloat64}
	leftGrad, leftHess := 0.0, 0.0
	minLeaf := b.params.minSamplesLeaf

	for i := 0; i < len(values)-1; i++ {
		idx := values[i].idx
		leftGrad += b.gradients[idx]
		leftHess += b.hessians[idx]

		if values[i].value == values[i+1].value {
			continue
		}
		leftCount := i + 1
		if leftCount < minLeaf || len(values)-leftCount < minLeaf {
			continue
		}

		gain := b.splitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
		if gain > best.gain {
			best = splitInfo{
				feature:   feature,
				threshold: (values[i].value + values[i+1].value) / 2,
				gain:      gain,
			}
		}
	}
	return best
}

// splitGain is the second-order loss reduction of a split.
func (b *treeBuilder) splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := b.params.lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

func (b *treeBuilder) splitData(indices []int, split splitInfo) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if b.X.At(idx, split.feature) <= split.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

// leafValue is the Newton step -G / (H + lambda).
func (b *treeBuilder) leafValue(indices []int) float64 {
	sumGrad, sumHess := 0.0, 0.0
	for _, idx := range indices {
		sumGrad += b.gradients[idx]
		sumHess += b.hessians[idx]
	}
	const epsilon = 1e-10
	return -sumGrad / (sumHess + b.params.lambda + epsilon)
}
