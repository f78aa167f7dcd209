package tracker

// CallStackDepth bounds the depth of unmatched CALLs the CFG builder will
// track before giving up. spec.md §9 requires a static bound with a fast,
// loud failure rather than silent truncation.
const CallStackDepth = 256

// Node is one vertex of the dynamic control-flow graph: a handle to the
// (store-owned) instruction it represents, its in/out degree, the inferred
// function it belongs to, and its ordered successor list.
type Node struct {
	instr      *Instruction
	inDegree   uint16
	outDegree  uint16
	functionID uint16
	successor  []*Node
}

// Instruction returns the instruction this node represents.
func (n *Node) Instruction() *Instruction { return n.instr }

// InDegree returns the number of distinct predecessors pointing at n.
func (n *Node) InDegree() uint16 { return n.inDegree }

// OutDegree returns the number of outgoing edges from n.
func (n *Node) OutDegree() uint16 { return n.outDegree }

// FunctionID returns the inferred function this node belongs to. Zero
// means "not yet assigned to any observed call target" (the entry
// trace before the first CALL is seen).
func (n *Node) FunctionID() uint16 { return n.functionID }

// Successors returns the ordered list of outgoing edges.
func (n *Node) Successors() []*Node { return n.successor }

func newNode(instr *Instruction) *Node {
	capacity := 1
	if instr.Kind() == Branch || instr.Kind() == Jump {
		capacity = 2
	}
	return &Node{
		instr:     instr,
		successor: make([]*Node, 0, capacity),
	}
}

// hasSuccessor reports whether dst is already among n's outgoing edges —
// required so the CFG stays a simple graph, never a multigraph: at most
// one edge per distinct destination.
func (n *Node) hasSuccessor(dst *Node) bool {
	for _, s := range n.successor {
		if s == dst {
			return true
		}
	}
	return false
}

// CFG is the dynamic control-flow graph. Nodes are owned by the graph for
// its whole lifetime (no node is ever deleted before CFG.Delete); edges are
// plain pointers, which is safe here because cycles are expected (loops,
// recursion) and nothing about this graph needs reference counting.
type CFG struct {
	store        *Store
	nodes        map[*Instruction]*Node
	entries      []*Node
	callStack    []*Node
	nextFnID     uint16
	maxCallDepth int
}

// NewCFG creates the graph's first node from instr, inserting it into
// store, using the default CallStackDepth bound. It fails with whatever
// error store.Insert reports.
func NewCFG(store *Store, instr *Instruction) (*CFG, *Node, error) {
	return NewCFGWithDepth(store, instr, CallStackDepth)
}

// NewCFGWithDepth is NewCFG with an explicit call-stack depth bound,
// letting -c/--config's call_stack_depth (see Config) override the
// compile-time default.
func NewCFGWithDepth(store *Store, instr *Instruction, maxCallDepth int) (*CFG, *Node, error) {
	if store == nil || instr == nil {
		return nil, nil, newError(InvalidArgument, "store and instruction must be non-nil")
	}
	if maxCallDepth <= 0 {
		maxCallDepth = CallStackDepth
	}

	if _, err := store.Insert(instr); err != nil {
		return nil, nil, err
	}

	n := newNode(instr)
	cfg := &CFG{
		store:        store,
		nodes:        map[*Instruction]*Node{instr: n},
		maxCallDepth: maxCallDepth,
	}
	return cfg, n, nil
}

// EntryNode returns the function-entry node for the given 1-based function
// id, or nil if no function has been assigned that id.
func (c *CFG) EntryNode(functionID uint16) *Node {
	if functionID == 0 || int(functionID) > len(c.entries) {
		return nil
	}
	return c.entries[functionID-1]
}

// CallDepth returns the number of CALLs observed without a matching RET.
func (c *CFG) CallDepth() int { return len(c.callStack) }

// Insert is the insertion driver described in spec.md §4.E: given the
// current node and a newly decoded instruction, it deduplicates the
// instruction against the store, applies the call-stack discipline, and
// extends the graph under the linkage policy implied by curNode's kind.
// It returns the node to use as curNode for the next step.
func (c *CFG) Insert(curNode *Node, newInstr *Instruction) (*Node, error) {
	if curNode == nil {
		return nil, newError(InvalidArgument, "curNode must be non-nil")
	}

	canon := c.store.Get(newInstr)
	var n *Node
	freshlyCreated := false
	if canon == nil {
		if _, err := c.store.Insert(newInstr); err != nil {
			return nil, err
		}
		n = newNode(newInstr)
		c.nodes[newInstr] = n
		freshlyCreated = true
	} else {
		n = c.nodes[canon]
	}

	if curNode.instr.Kind() == Call {
		if len(c.callStack) >= c.maxCallDepth {
			return nil, newError(TracerFailure, "call stack overflow: depth exceeds %d", c.maxCallDepth)
		}
		c.callStack = append(c.callStack, curNode)
		if freshlyCreated {
			c.nextFnID++
			n.functionID = c.nextFnID
			c.entries = append(c.entries, n)
		}
	}

	// Determine the real source of the edge: for RET this may be the
	// matched caller rather than curNode itself (spec.md §4.E's RET row).
	source := curNode
	isRet := curNode.instr.Kind() == Ret
	var caller *Node
	matchedCaller := false
	if isRet && len(c.callStack) > 0 {
		caller = c.callStack[len(c.callStack)-1]
		c.callStack = c.callStack[:len(c.callStack)-1]
		if n.instr.Address() == caller.instr.Address()+uintptr(caller.instr.Size()) {
			source = caller
			matchedCaller = true
		}
	}

	if source.hasSuccessor(n) {
		if isRet {
			n.functionID = source.functionID
		}
		return n, nil
	}

	switch {
	case isRet:
		if matchedCaller {
			linkAppend(source, n)
		} else {
			linkSingle(source, n)
		}
		// The returned-to instruction belongs to whichever function the
		// edge's real source (the caller, when matched) belongs to — not
		// necessarily the RET instruction's own function.
		n.functionID = source.functionID

	case curNode.instr.Kind() == Basic:
		linkSingle(source, n)
		n.functionID = curNode.functionID

	case curNode.instr.Kind() == Branch:
		if len(source.successor) >= 2 {
			// Refuse to exceed two outgoing edges for a BRANCH node.
			return n, nil
		}
		linkAppend(source, n)

	case curNode.instr.Kind() == Call:
		if len(source.successor) == 0 {
			linkAppend(source, n)
		}

	case curNode.instr.Kind() == Jump:
		linkAppend(source, n)

	default:
		linkSingle(source, n)
	}

	return n, nil
}

// linkSingle assigns the sole outgoing edge of a BASIC or RET-fallback
// source (capacity 1 per node_new).
func linkSingle(source, dst *Node) {
	if len(source.successor) > 0 {
		return
	}
	source.successor = append(source.successor, dst)
	source.outDegree++
	dst.inDegree++
}

// linkAppend appends dst to source's successor list; Go's slice append
// already amortizes the doubling-capacity growth spec.md §4.E calls for,
// so no manual realloc bookkeeping is needed here.
func linkAppend(source, dst *Node) {
	source.successor = append(source.successor, dst)
	source.outDegree++
	dst.inDegree++
}

// Delete releases the graph's successor-list storage. It does not release
// the instructions the nodes reference — those are owned by the Store,
// whose own Delete is responsible for freeing them.
func (c *CFG) Delete() {
	for _, n := range c.nodes {
		n.successor = nil
	}
	c.nodes = nil
	c.entries = nil
	c.callStack = nil
}
