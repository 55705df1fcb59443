package analytics

import (
	"math"
	"math/rand"
)

// eulerGamma постоянная Эйлера-Маскерони для приближения гармонического числа
const eulerGamma = 0.5772156649

// isolationTree узел дерева изоляции
type isolationTree struct {
	splitFeature int
	splitValue   float64
	left         *isolationTree
	right        *isolationTree
	size         int
	isLeaf       bool
}

// IsolationForest лес изоляции с детерминированным источником случайности
type IsolationForest struct {
	trees      []*isolationTree
	numTrees   int
	sampleSize int
	psi        int
	maxDepth   int
	rng        *rand.Rand
}

// NewIsolationForest создает лес; одинаковый seed на одинаковых данных дает одинаковые деревья
func NewIsolationForest(numTrees, sampleSize int, seed int64) *IsolationForest {
	return &IsolationForest{
		numTrees:   numTrees,
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Fit строит деревья по всей выборке
func (f *IsolationForest) Fit(data [][]float64) {
	f.trees = f.trees[:0]
	if len(data) == 0 {
		return
	}

	f.psi = f.sampleSize
	if f.psi > len(data) {
		f.psi = len(data)
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.psi), 2))))

	idx := make([]int, len(data))
	for i := 0; i < f.numTrees; i++ {
		sample := f.sample(data, idx)
		f.trees = append(f.trees, f.buildTree(sample, 0))
	}
}

// Score возвращает оценку s(x) = 2^(-E[h(x)]/c(psi)) в (0, 1]; больше значит аномальнее
func (f *IsolationForest) Score(x []float64) float64 {
	c := averagePathLength(f.psi)
	if len(f.trees) == 0 || c == 0 {
		return 0.5
	}

	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/c)
}

// ScoreAll оценивает каждую строку
func (f *IsolationForest) ScoreAll(data [][]float64) []float64 {
	scores := make([]float64, len(data))
	for i, x := range data {
		scores[i] = f.Score(x)
	}
	return scores
}

// sample выбирает psi строк без возвращения (частичный Фишер-Йетс)
func (f *IsolationForest) sample(data [][]float64, idx []int) [][]float64 {
	for i := range idx {
		idx[i] = i
	}
	out := make([][]float64, f.psi)
	for i := 0; i < f.psi; i++ {
		j := i + f.rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = data[idx[i]]
	}
	return out
}

func (f *IsolationForest) buildTree(data [][]float64, depth int) *isolationTree {
	if len(data) <= 1 || depth >= f.maxDepth {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	// Признаки с ненулевым разбросом; если таких нет, все точки совпадают
	var candidates []int
	for feature := range data[0] {
		lo, hi := featureRange(data, feature)
		if hi > lo {
			candidates = append(candidates, feature)
		}
	}
	if len(candidates) == 0 {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	feature := candidates[f.rng.Intn(len(candidates))]
	lo, hi := featureRange(data, feature)
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, x := range data {
		if x[feature] < split {
			left = append(left, x)
		} else {
			right = append(right, x)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	return &isolationTree{
		splitFeature: feature,
		splitValue:   split,
		left:         f.buildTree(left, depth+1),
		right:        f.buildTree(right, depth+1),
		size:         len(data),
	}
}

func pathLength(tree *isolationTree, x []float64, depth int) float64 {
	if tree.isLeaf {
		return float64(depth) + averagePathLength(tree.size)
	}
	if x[tree.splitFeature] < tree.splitValue {
		return pathLength(tree.left, x, depth+1)
	}
	return pathLength(tree.right, x, depth+1)
}

// averagePathLength c(n) = 2H(n-1) - 2(n-1)/n, средняя длина неуспешного поиска в BST
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func featureRange(data [][]float64, feature int) (float64, float64) {
	lo, hi := data[0][feature], data[0][feature]
	for _, x := range data[1:] {
		if x[feature] < lo {
			lo = x[feature]
		}
		if x[feature] > hi {
			hi = x[feature]
		}
	}
	return lo, hi
}

// Percentile квантиль q в [0,1] с линейной интерполяцией между соседними рангами
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
