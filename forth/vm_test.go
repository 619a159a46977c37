package forth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ischeinkman/rtforth/forth"
)

// setup builds a fresh VM and evaluates src, failing the test on any
// uncaught exception - mirroring the teacher's own setup/check helper
// style for driving the VM from table-driven cases.
func setup(t *testing.T, src string) *forth.VM {
	t.Helper()
	vm, err := forth.New()
	require.NoError(t, err)
	vm.Evaluate(src)
	require.Nil(t, vm.LastError, "unexpected exception evaluating %q", src)
	return vm
}

func check(t *testing.T, src string, want ...forth.Cell) {
	t.Helper()
	vm := setup(t, src)
	require.Equal(t, want, vm.Stack())
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		want []forth.Cell
	}{
		{"2 3 +", []forth.Cell{5}},
		{"7 2 -", []forth.Cell{5}},
		{"6 7 *", []forth.Cell{42}},
		{"7 2 /", []forth.Cell{3}},
		{"7 2 mod", []forth.Cell{1}},
		{"-7 2 /", []forth.Cell{-3}},
		{"-7 2 mod", []forth.Cell{-1}},
		{"3 4 min", []forth.Cell{3}},
		{"3 4 max", []forth.Cell{4}},
	}
	for _, c := range cases {
		vm := setup(t, c.src)
		require.Equal(t, c.want, vm.Stack(), c.src)
	}
}

func TestCreateDoesStorage(t *testing.T) {
	check(t, `create x 3 , : x@ x @ ; x@`, 3)
}

func TestDoLoopCounts(t *testing.T) {
	check(t, `: t 3 0 do i loop ; t`, 0, 1, 2)
}

func TestDoLoopIncrementsCounter(t *testing.T) {
	check(t, `: up 0 do 1+ loop ; 0 5 up`, 5)
}

func TestIfThen(t *testing.T) {
	check(t, `: abs2 dup 0 < if negate then ; -5 abs2`, 5)
	check(t, `: abs2 dup 0 < if negate then ; 5 abs2`, 5)
}

func TestBeginUntil(t *testing.T) {
	check(t, `: cnt 0 begin 1+ dup 5 = until ; cnt`, 5)
}

func TestCaseOfEndof(t *testing.T) {
	check(t, `: sel case 1 of 100 endof 2 of 200 endof 999 swap endcase ; 1 sel`, 100)
	check(t, `: sel case 1 of 100 endof 2 of 200 endof 999 swap endcase ; 2 sel`, 200)
	check(t, `: sel case 1 of 100 endof 2 of 200 endof 999 swap endcase ; 3 sel`, 999)
}

func TestMarkerRollback(t *testing.T) {
	vm := setup(t, `marker -reset : tempword 42 ; -reset`)
	_, ok := vm.Dictionary().Find("tempword")
	require.False(t, ok, "tempword should have been rolled back")
	_, ok = vm.Dictionary().Find("-reset")
	require.False(t, ok, "the marker word itself should roll back too")
}

func TestControlStructureMismatch(t *testing.T) {
	vm, err := forth.New()
	require.NoError(t, err)
	vm.Evaluate(`: bad if ;`)
	require.NotNil(t, vm.LastError)
	require.Equal(t, forth.ControlStructureMismatch, *vm.LastError)
}

func TestFindIsCaseInsensitive(t *testing.T) {
	vm, err := forth.New()
	require.NoError(t, err)
	_, ok := vm.Dictionary().Find("DUP")
	require.True(t, ok)
	_, ok = vm.Dictionary().Find("Dup")
	require.True(t, ok)
}

func TestUndefinedWordAborts(t *testing.T) {
	vm, err := forth.New()
	require.NoError(t, err)
	vm.Evaluate(`this-word-does-not-exist`)
	require.NotNil(t, vm.LastError)
	require.Equal(t, forth.UndefinedWord, *vm.LastError)
}

func TestNumericLabelRoundTrip(t *testing.T) {
	check(t, `: test 0labels 0 [ 10 ] label 1+ dup 3 > if exit then [ 10 ] goto ; test`, 4)
}

func TestStackDepth(t *testing.T) {
	vm := setup(t, `1 2 3`)
	require.Equal(t, 3, vm.Depth())
}
