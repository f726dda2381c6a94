package detour

import (
	"container/heap"

	"github.com/gorustyt/navquery/common"
)

const (
	DT_NODE_OPEN   = 0x01
	DT_NODE_CLOSED = 0x02
)

type DtNodeIndex uint16

const DT_NULL_IDX = ^DtNodeIndex(0)

// DT_MAX_NODES is the largest node pool a query can own; node indices are 16 bit.
const DT_MAX_NODES = int(DT_NULL_IDX) - 1

const (
	DT_NODE_STATE_BITS     = 2
	DT_MAX_STATES_PER_NODE = 1 << DT_NODE_STATE_BITS // number of extra states per node. See DtNode::State
)

type DtNode struct {
	Pos   [3]float32 ///< Position of the node.
	Cost  float32    ///< Cost from previous node to current node.
	Total float32    ///< Cost up to the node.
	Pidx  uint32     ///< Index to parent node, 0 when there is none.
	State uint8      ///< Extra state information. A polyRef can have multiple nodes with different extra info.
	Flags uint8      ///< Node flags. A combination of DT_NODE_OPEN and DT_NODE_CLOSED.
	Id    DtPolyRef  ///< Polygon ref the node corresponds to.

	poolIdx   uint32
	heapIndex int
}

// DtNodePool hands out search nodes keyed by (polygon, state). The
// backing arrays are allocated once and Clear only resets the buckets.
type DtNodePool struct {
	m_nodes     []DtNode
	m_first     []DtNodeIndex
	m_next      []DtNodeIndex
	m_maxNodes  int
	m_hashSize  int
	m_nodeCount int
}

func NewDtNodePool(maxNodes, hashSize int) *DtNodePool {
	if hashSize <= 0 {
		hashSize = 1
	}
	hashSize = int(common.NextPow2(uint32(hashSize)))
	p := &DtNodePool{
		m_maxNodes: maxNodes,
		m_hashSize: hashSize,
		m_nodes:    make([]DtNode, maxNodes),
		m_next:     make([]DtNodeIndex, maxNodes),
		m_first:    make([]DtNodeIndex, hashSize),
	}
	for i := range p.m_first {
		p.m_first[i] = DT_NULL_IDX
	}
	for i := range p.m_next {
		p.m_next[i] = DT_NULL_IDX
	}
	return p
}

func (p *DtNodePool) Clear() {
	for i := range p.m_first {
		p.m_first[i] = DT_NULL_IDX
	}
	p.m_nodeCount = 0
}

func dtHashRef(ref DtPolyRef) uint32 {
	a := uint64(ref)
	a = (^a) + (a << 18)
	a = a ^ (a >> 31)
	a = a * 21
	a = a ^ (a >> 11)
	a = a + (a << 6)
	a = a ^ (a >> 22)
	return uint32(a)
}

// FindNodes returns every node allocated for the polygon, one per state.
func (p *DtNodePool) FindNodes(id DtPolyRef, maxNodes int) (nodes []*DtNode) {
	bucket := dtHashRef(id) & uint32(p.m_hashSize-1)
	for i := p.m_first[bucket]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id {
			if len(nodes) >= maxNodes {
				return nodes
			}
			nodes = append(nodes, &p.m_nodes[i])
		}
	}
	return nodes
}

func (p *DtNodePool) FindNode(id DtPolyRef, state uint8) *DtNode {
	bucket := dtHashRef(id) & uint32(p.m_hashSize-1)
	for i := p.m_first[bucket]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id && p.m_nodes[i].State == state {
			return &p.m_nodes[i]
		}
	}
	return nil
}

// GetNode returns the node for (id, state), allocating it when missing.
// It returns nil when the pool is exhausted.
func (p *DtNodePool) GetNode(id DtPolyRef, state uint8) *DtNode {
	if node := p.FindNode(id, state); node != nil {
		return node
	}
	if p.m_nodeCount >= p.m_maxNodes {
		return nil
	}
	i := DtNodeIndex(p.m_nodeCount)
	p.m_nodeCount++

	// Init node
	node := &p.m_nodes[i]
	*node = DtNode{Id: id, State: state, poolIdx: uint32(i) + 1, heapIndex: -1}

	bucket := dtHashRef(id) & uint32(p.m_hashSize-1)
	p.m_next[i] = p.m_first[bucket]
	p.m_first[bucket] = i
	return node
}

// GetNodeIdx returns the 1-based index of the node, 0 for nil.
func (p *DtNodePool) GetNodeIdx(node *DtNode) uint32 {
	if node == nil {
		return 0
	}
	return node.poolIdx
}

func (p *DtNodePool) GetNodeAtIdx(idx uint32) *DtNode {
	if idx == 0 || int(idx) > p.m_nodeCount {
		return nil
	}
	return &p.m_nodes[idx-1]
}

func (p *DtNodePool) GetNodeCount() int { return p.m_nodeCount }
func (p *DtNodePool) GetMaxNodes() int  { return p.m_maxNodes }

// DtNodeQueue is the open list: a binary min-heap on DtNode.Total.
type DtNodeQueue struct {
	m_heap nodeHeap
}

func NewDtNodeQueue(capacity int) *DtNodeQueue {
	return &DtNodeQueue{m_heap: make(nodeHeap, 0, capacity)}
}

func (q *DtNodeQueue) Clear() {
	for _, n := range q.m_heap {
		n.heapIndex = -1
	}
	q.m_heap = q.m_heap[:0]
}

func (q *DtNodeQueue) Top() *DtNode {
	return q.m_heap[0]
}

func (q *DtNodeQueue) Pop() *DtNode {
	return heap.Pop(&q.m_heap).(*DtNode)
}

func (q *DtNodeQueue) Push(node *DtNode) {
	heap.Push(&q.m_heap, node)
}

// Modify restores heap order after node.Total decreased.
func (q *DtNodeQueue) Modify(node *DtNode) {
	if node.heapIndex < 0 || node.heapIndex >= len(q.m_heap) || q.m_heap[node.heapIndex] != node {
		q.Push(node)
		return
	}
	heap.Fix(&q.m_heap, node.heapIndex)
}

func (q *DtNodeQueue) Empty() bool { return len(q.m_heap) == 0 }
func (q *DtNodeQueue) Len() int    { return len(q.m_heap) }

type nodeHeap []*DtNode

func (h nodeHeap) Len() int { return len(h) }

// Ties on total cost break on pool order so that searches are repeatable.
func (h nodeHeap) Less(i, j int) bool {
	if h[i].Total != h[j].Total {
		return h[i].Total < h[j].Total
	}
	return h[i].poolIdx < h[j].poolIdx
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*DtNode)
	n.heapIndex = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.heapIndex = -1
	*h = old[:len(old)-1]
	return n
}
