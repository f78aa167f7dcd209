package tracker

// DefaultStoreSize is the default bucket-array capacity (2^16), matching
// DEFAULT_HASHTABLE_SIZE in the original implementation.
const DefaultStoreSize = 1 << 16

// Store is a fixed-capacity, hash-indexed table of Instructions. It is the
// sole owner of every Instruction it successfully inserts: the lifetime of
// an *Instruction, once handed to Insert and accepted, is tied to the
// Store's own lifetime.
//
// Buckets grow by contiguous reallocation within the bucket only — the
// table itself never resizes during a run, which keeps a long-running
// trace's billions of lookups free of any resize pause.
type Store struct {
	buckets       [][]*Instruction
	entries       uint64
	collisions    uint64
	filledBuckets uint64
}

// NewStore allocates a Store with the given bucket-array capacity. It
// fails with InvalidArgument if size is zero.
func NewStore(size int) (*Store, error) {
	if size == 0 {
		return nil, newError(InvalidArgument, "store size must be non-zero")
	}
	return &Store{buckets: make([][]*Instruction, size)}, nil
}

// Insert places instr in the table, keyed by hashInstruction(instr) mod
// len(buckets). It returns true if instr was newly recorded, false if an
// instruction with the same (address, size, opcode bytes) identity was
// already present — in which case the caller owns instr again and should
// discard it (the store already owns the canonical copy). Insert fails
// with InvalidArgument if either s or instr is nil.
func (s *Store) Insert(instr *Instruction) (bool, error) {
	if s == nil || instr == nil {
		return false, newError(InvalidArgument, "store and instruction must be non-nil")
	}

	index := hashInstruction(instr) % uint64(len(s.buckets))
	bucket := s.buckets[index]

	if bucket == nil {
		s.buckets[index] = []*Instruction{instr}
		s.entries++
		s.filledBuckets++
		return true, nil
	}

	for _, existing := range bucket {
		if existing.sameIdentity(instr) {
			return false, nil
		}
	}

	// Every insertion into an already-nonempty bucket after the first is,
	// by definition, a collision.
	s.buckets[index] = append(bucket, instr)
	s.entries++
	s.collisions++
	return true, nil
}

// Lookup reports whether an instruction with the same identity as instr is
// already present in the store.
func (s *Store) Lookup(instr *Instruction) bool {
	if s == nil || instr == nil {
		return false
	}

	index := hashInstruction(instr) % uint64(len(s.buckets))
	for _, existing := range s.buckets[index] {
		if existing.sameIdentity(instr) {
			return true
		}
	}
	return false
}

// Get returns the canonical stored Instruction sharing instr's identity, or
// nil if none is present. Used by the CFG builder to resolve an
// already-visited node without allocating a new one.
func (s *Store) Get(instr *Instruction) *Instruction {
	if s == nil || instr == nil {
		return nil
	}

	index := hashInstruction(instr) % uint64(len(s.buckets))
	for _, existing := range s.buckets[index] {
		if existing.sameIdentity(instr) {
			return existing
		}
	}
	return nil
}

// Entries returns the number of successfully inserted instructions.
func (s *Store) Entries() uint64 { return s.entries }

// Collisions returns the number of insertions that landed in an
// already-nonempty bucket.
func (s *Store) Collisions() uint64 { return s.collisions }

// FilledBuckets returns the number of buckets holding at least one entry.
func (s *Store) FilledBuckets() uint64 { return s.filledBuckets }

// Size returns the bucket-array capacity the store was created with.
func (s *Store) Size() int { return len(s.buckets) }

// Delete releases every instruction and bucket the store holds. After
// Delete, the store must not be reused.
func (s *Store) Delete() {
	for i := range s.buckets {
		s.buckets[i] = nil
	}
	s.entries = 0
	s.collisions = 0
	s.filledBuckets = 0
}
