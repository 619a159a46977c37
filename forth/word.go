package forth

import "strings"

// bucketCount is the fixed width of the dictionary's name hash-bucket
// array.
const bucketCount = 64

// Action is the runtime behavior a word performs when executed.
type Action func(vm *VM)

// CompilationSemantics is how a reference to a word is emitted while
// compiling a colon definition: usually "compile a call to this XT", but
// immediate words instead run Action directly and control-flow words emit
// branches.
type CompilationSemantics func(vm *VM, xt int)

// Word is one dictionary header: a record of a single Forth definition.
// Headers are owned by the dictionary and are never freed except by a
// marker/unmark rollback.
type Word struct {
	nfa  int // name-field address: a counted string in data space
	dfa  int // data-field address
	link int // index of the previous header in the same hash bucket, or -1
	hash uint32

	immediate    bool
	compileOnly  bool
	hidden       bool

	action               Action
	compilationSemantics CompilationSemantics

	// Reserved timing instrumentation. The spec treats these as present
	// but unused capacity for a future timing pass; nothing updates them.
	minExecutionTimeNs int64
	maxExecutionTimeNs int64
}

// NFA returns the word's name-field address.
func (w *Word) NFA() int { return w.nfa }

// DFA returns the word's data-field address.
func (w *Word) DFA() int { return w.dfa }

// Immediate reports whether the word executes at compile time even inside
// a definition.
func (w *Word) Immediate() bool { return w.immediate }

// CompileOnly reports whether interpreting this word outside a definition
// is an error.
func (w *Word) CompileOnly() bool { return w.compileOnly }

// Hidden reports whether find() should skip this header.
func (w *Word) Hidden() bool { return w.hidden }

// djb2 hashes the ASCII-lowercased bytes of name, per Bernstein's
// djb2 algorithm: hash = hash*33 + c.
func djb2(name string) uint32 {
	var hash uint32 = 5381
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		hash = hash*33 + uint32(c)
	}
	return hash
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Dictionary is the append-only sequence of word headers, indexed by
// execution token (XT = slice index). A fixed-width bucket array indexes
// the most-recent header whose name hash modulo bucketCount equals the
// bucket; chains are strictly descending in XT.
type Dictionary struct {
	words        []Word
	buckets      [bucketCount]int // index into words, or -1
	tempBuckets  [bucketCount]int
	ds           *DataSpace
}

func newDictionary(ds *DataSpace) *Dictionary {
	d := &Dictionary{ds: ds}
	for i := range d.buckets {
		d.buckets[i] = -1
	}
	return d
}

// Len returns the number of defined words (the next XT to be assigned).
func (d *Dictionary) Len() int { return len(d.words) }

// At returns the header for the given XT.
func (d *Dictionary) At(xt int) *Word { return &d.words[xt] }

// Name returns the (case-preserving) name of the word at xt.
func (d *Dictionary) Name(xt int) string {
	return d.ds.CountedString(d.words[xt].nfa)
}

func (d *Dictionary) bucketOf(name string) (uint32, int) {
	h := djb2(name)
	return h, int(h % bucketCount)
}

// Find returns the XT of the newest non-hidden header whose name matches
// (ASCII case-insensitive), and whether one was found. The bucket chain is
// walked by link, comparing hashes before falling back to a full
// case-insensitive name comparison.
func (d *Dictionary) Find(name string) (int, bool) {
	hash, b := d.bucketOf(name)
	for xt := d.buckets[b]; xt != -1; xt = d.words[xt].link {
		w := &d.words[xt]
		if w.hash != hash {
			continue
		}
		if w.hidden {
			continue
		}
		if equalFold(d.ds.CountedString(w.nfa), name) {
			return xt, true
		}
	}
	return 0, false
}

// FindXT returns the XT of the word whose NFA is the largest not exceeding
// addr, found via binary search since NFAs are monotonic by construction.
func (d *Dictionary) FindXT(addr int) (int, bool) {
	lo, hi := 0, len(d.words)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.words[mid].nfa <= addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, false
	}
	return lo - 1, true
}

// push appends a new header, chaining it into its hash bucket, and returns
// its XT.
func (d *Dictionary) push(name string, w Word) int {
	hash, b := d.bucketOf(name)
	w.hash = hash
	w.link = d.buckets[b]
	xt := len(d.words)
	d.words = append(d.words, w)
	d.buckets[b] = xt
	return xt
}

// truncate removes headers from index i onward (used by unmark).
func (d *Dictionary) truncate(i int) {
	d.words = d.words[:i]
}

// snapshotBuckets copies the current bucket heads into dst (used by
// `marker` to later restore dictionary state with unmark).
func (d *Dictionary) snapshotBuckets(dst *[bucketCount]int) {
	*dst = d.buckets
}

func (d *Dictionary) restoreBuckets(src [bucketCount]int) {
	d.buckets = src
}

// AddPrimitive compiles name as a counted string into data space, cell
// aligns, and appends a header whose DFA is the resulting `here`, whose
// action is the given function and whose compilation semantics is "emit a
// call cell holding this XT". Returns the new word's XT.
func (d *Dictionary) AddPrimitive(name string, action Action) int {
	nfa := d.ds.CompileString(name)
	d.ds.Align()
	dfa := d.ds.Here()
	xt := d.push(name, Word{
		nfa:    nfa,
		dfa:    dfa,
		action: action,
	})
	d.words[xt].compilationSemantics = compileCallSemantics
	return xt
}

// AddImmediate is AddPrimitive followed by marking the word immediate.
func (d *Dictionary) AddImmediate(name string, action Action) int {
	xt := d.AddPrimitive(name, action)
	d.words[xt].immediate = true
	return xt
}

// AddCompileOnly is AddPrimitive followed by marking the word compile-only.
func (d *Dictionary) AddCompileOnly(name string, action Action) int {
	xt := d.AddPrimitive(name, action)
	d.words[xt].compileOnly = true
	return xt
}

// compileCallSemantics is the default compilation semantics: compile a
// cell holding the XT, to be executed by `nest` or a primitive action at
// run time.
func compileCallSemantics(vm *VM, xt int) {
	vm.ds.CompileCell(Cell(xt))
}

// Define is the generic create helper used by `:`, `create`, `constant`
// and `marker`. If name already exists, a redefinition notice is logged
// (matching the teacher's redefinition diagnostics) but the new header is
// appended regardless, shadowing the old one in lookups.
func (d *Dictionary) Define(vm *VM, name string, action Action, semantics CompilationSemantics) int {
	if _, ok := d.Find(name); ok {
		vm.log().Info().Str("word", name).Msg("redefined")
	}
	nfa := d.ds.CompileString(name)
	d.ds.Align()
	dfa := d.ds.Here()
	xt := d.push(name, Word{
		nfa:                  nfa,
		dfa:                  dfa,
		action:               action,
		compilationSemantics: semantics,
	})
	return xt
}
