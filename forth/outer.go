package forth

import "strings"

func isDelimiter(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// parseWord copies a whitespace-delimited token from the current task's
// input buffer starting at sourceIndex, skipping leading delimiters, and
// advances sourceIndex past the token and one following delimiter.
func (vm *VM) parseWord() string {
	t := vm.currentTask()
	buf := t.inputBuffer
	i := t.sourceIndex
	for i < len(buf) && isDelimiter(buf[i]) {
		i++
	}
	start := i
	for i < len(buf) && !isDelimiter(buf[i]) {
		i++
	}
	word := buf[start:i]
	if i < len(buf) {
		i++
	}
	t.sourceIndex = i
	return word
}

// parse copies characters up to but not including the delimiter ch, then
// advances past it.
func (vm *VM) parse(ch byte) string {
	t := vm.currentTask()
	buf := t.inputBuffer
	i := t.sourceIndex
	start := i
	for i < len(buf) && buf[i] != ch {
		i++
	}
	s := buf[start:i]
	if i < len(buf) {
		i++
	}
	t.sourceIndex = i
	return s
}

// skip advances the task's source index past a run of ch.
func (vm *VM) skip(ch byte) {
	t := vm.currentTask()
	buf := t.inputBuffer
	i := t.sourceIndex
	for i < len(buf) && buf[i] == ch {
		i++
	}
	t.sourceIndex = i
}

// SetInput installs s as the current task's input buffer, resetting the
// source index.
func (vm *VM) SetInput(s string) {
	t := vm.currentTask()
	t.inputBuffer = s
	t.sourceIndex = 0
}

// Evaluate repeatedly parses a token from the current task's input buffer
// and dispatches it on compile state, until the buffer is exhausted. This
// is evaluate_input from the outer interpreter design.
func (vm *VM) Evaluate(s string) {
	vm.SetInput(s)
	for {
		word := vm.parseWord()
		if word == "" {
			return
		}
		vm.lastToken = word
		t := vm.currentTask()
		if t.compiling {
			vm.compileToken(word)
		} else {
			vm.interpretToken(word)
		}
		vm.run()
		vm.checkStacks()
		if vm.LastError != nil {
			return
		}
	}
}

// compileToken looks up word; if found and immediate, it executes
// immediately, otherwise it invokes the word's compilation semantics. If
// not found, it attempts an integer then a float parse and compiles the
// literal, or raises UNDEFINED_WORD.
func (vm *VM) compileToken(word string) {
	if xt, ok := vm.dict.Find(word); ok {
		w := vm.dict.At(xt)
		if w.immediate {
			vm.executeXT(xt)
		} else {
			w.compilationSemantics(vm, xt)
		}
		return
	}
	if n, ok := vm.parseInteger(word); ok {
		vm.ds.CompileCell(Cell(vm.refs.lit))
		vm.ds.CompileCell(n)
		return
	}
	if f, ok := vm.parseFloat(word); ok {
		vm.ds.CompileCell(Cell(vm.refs.flit))
		vm.ds.CompileFloat(f)
		return
	}
	vm.abortWith(UndefinedWord)
}

// interpretToken looks up word; if found and compile-only, raises
// INTERPRETING_A_COMPILE_ONLY_WORD, otherwise executes it. If not found,
// attempts an integer then a float parse and pushes the value, or raises
// UNDEFINED_WORD.
func (vm *VM) interpretToken(word string) {
	if xt, ok := vm.dict.Find(word); ok {
		w := vm.dict.At(xt)
		if w.compileOnly {
			vm.abortWith(InterpretingACompileOnlyWord)
			return
		}
		vm.executeXT(xt)
		return
	}
	if n, ok := vm.parseInteger(word); ok {
		vm.currentTask().pStack.push(n)
		return
	}
	if f, ok := vm.parseFloat(word); ok {
		vm.currentTask().fStack.push(f)
		return
	}
	vm.abortWith(UndefinedWord)
}

// parseInteger parses word as `sign? digits` in the current BASE, a
// `$`/`%`/`#` radix-override prefix (hex/binary/decimal respectively), or
// a character literal of the form 'c'.
func (vm *VM) parseInteger(word string) (Cell, bool) {
	if len(word) == 3 && word[0] == '\'' && word[2] == '\'' {
		return Cell(word[1]), true
	}
	if word == "" {
		return 0, false
	}
	base := int(vm.ds.base())
	s := word
	switch s[0] {
	case '$':
		base, s = 16, s[1:]
	case '%':
		base, s = 2, s[1:]
	case '#':
		base, s = 10, s[1:]
	}
	if s == "" {
		return 0, false
	}
	neg := false
	switch s[0] {
	case '-':
		neg, s = true, s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}
	var v uint
	for i := 0; i < len(s); i++ {
		d, ok := digitValue(s[i])
		if !ok || d >= base {
			return 0, false
		}
		v = v*uint(base) + uint(d)
	}
	n := Cell(v)
	if neg {
		n = -n
	}
	return n, true
}

func digitValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// parseFloat parses word as `sign? digits '.' digits (('E'|'e') sign?
// digits)?`. The decimal point is mandatory; the exponent is optional.
func (vm *VM) parseFloat(word string) (float64, bool) {
	if !strings.ContainsRune(word, '.') {
		return 0, false
	}
	s := word
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intPart := s[start:i]
	if i >= len(s) || s[i] != '.' {
		return 0, false
	}
	i++
	start = i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	fracPart := s[start:i]
	if intPart == "" && fracPart == "" {
		return 0, false
	}
	mantissa := 0.0
	for _, c := range intPart {
		mantissa = mantissa*10 + float64(c-'0')
	}
	frac := 0.0
	scale := 1.0
	for _, c := range fracPart {
		scale /= 10
		frac += float64(c-'0') * scale
	}
	v := mantissa + frac
	exp := 0
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		expNeg := false
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			expNeg = s[i] == '-'
			i++
		}
		if i >= len(s) {
			return 0, false
		}
		estart := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == estart {
			return 0, false
		}
		for _, c := range s[estart:i] {
			exp = exp*10 + int(c-'0')
		}
		if expNeg {
			exp = -exp
		}
	}
	if i != len(s) {
		return 0, false
	}
	for n := exp; n > 0; n-- {
		v *= 10
	}
	for n := exp; n < 0; n++ {
		v /= 10
	}
	if neg {
		v = -v
	}
	return v, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
