package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	ld := Opcode(indexOf(t, "LDG"))
	st := Opcode(indexOf(t, "STS"))
	shared := Opcode(indexOf(t, "LDSM"))
	alu := Opcode(indexOf(t, "IADD"))

	assert.True(t, ld.IsLoad())
	assert.False(t, ld.IsStore())
	assert.False(t, ld.IsSharedMemory())

	assert.True(t, st.IsStore())
	assert.True(t, st.IsSharedMemory())

	assert.True(t, shared.IsLoad())
	assert.True(t, shared.IsSharedMemory())

	assert.False(t, alu.IsLoad())
	assert.False(t, alu.IsStore())
	assert.False(t, alu.IsSharedMemory())

	assert.Equal(t, "IADD", alu.Name())
	assert.Equal(t, "", Opcode(len(Names)+1).Name())
}

func indexOf(t *testing.T, name string) int {
	t.Helper()
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	t.Fatalf("opcode %q not found", name)
	return -1
}
