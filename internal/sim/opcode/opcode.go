// Package opcode is the ported NVBit opcode catalog: the real instruction
// mnemonics a GPU trace's opcode byte indexes into, and the three
// name-based predicates (is_ld, is_st, is_using_shared_memory) the memory
// path uses to decide how an instruction touches the hierarchy. This is
// data carried over from the instrumentation tool that produced the trace
// format, not a design choice, so the table is kept verbatim.
package opcode

// Opcode indexes into Names. It is the first byte of every trace record.
type Opcode uint8

// Names is the NVBit opcode table, index-compatible with the GPU_NVBIT_OPCODE_
// enum it was generated from.
var Names = [...]string{
	"FADD", "FADD32I", "FCHK", "FFMA32I", "FFMA", "FMNMX", "FMUL", "FMUL32I",
	"FSEL", "FSET", "FSETP", "FSWZADD", "MUFU", "HADD2", "HADD2_32I", "HFMA2",
	"HFMA2_32I", "HMMA", "HMUL2", "HMUL2_32I", "HSET2", "HSETP2", "DADD",
	"DFMA", "DMUL", "DSETP", "BMMA", "BMSK", "BREV", "FLO", "IABS", "IADD",
	"IADD3", "IADD32I", "IDP", "IDP4A", "IMAD", "IMMA", "IMNMX", "IMUL",
	"IMUL32I", "ISCADD", "ISCADD32I", "ISETP", "LEA", "LOP", "LOP3", "LOP32I",
	"POPC", "SHF", "SHL", "SHR", "VABSDIFF", "VABSDIFF4", "F2F", "F2I", "I2F",
	"I2I", "I2IP", "FRND", "MOV", "MOV32I", "MOVM", "PRMT", "SEL", "SGXT",
	"SHFL", "PLOP3", "PSETP", "P2R", "R2P", "LD", "LDC", "LDG", "LDL", "LDS",
	"LDSM", "ST", "STG", "STL", "STS", "MATCH", "QSPC", "ATOM", "ATOMS",
	"ATOMG", "RED", "CCTL", "CCTLL", "ERRBAR", "MEMBAR", "CCTLT", "R2UR",
	"S2UR", "UBMSK", "UBREV", "UCLEA", "UFLO", "UIADD3", "UIADD3_64", "UIMAD",
	"UISETP", "ULDC", "ULEA", "ULOP", "ULOP3", "ULOP32I", "UMOV", "UP2UR",
	"UPLOP3", "UPOPC", "UPRMT", "UPSETP", "UR2UP", "USEL", "USGXT", "USHF",
	"USHL", "USHR", "VOTEU", "TEX", "TLD", "TLD4", "TMML", "TXD", "TXQ",
	"SUATOM", "SULD", "SURED", "SUST", "BMOV", "BPT", "BRA", "BREAK", "BRX",
	"BRXU", "BSSY", "BSYNC", "CALL", "EXIT", "JMP", "JMX", "JMXU", "KILL",
	"NANOSLEEP", "RET", "RPCMOV", "RTT", "WARPSYNC", "YIELD", "B2R", "BAR",
	"CS2R", "DEPBAR", "GETLMEMBASE", "LEPC", "NOP", "PMTRIG", "R2B", "S2R",
	"SETCTAID", "SETLMEMBASE", "VOTE",
}

var (
	ldSet     = toSet("LD", "LDC", "LDG", "LDL", "LDS", "LDSM")
	stSet     = toSet("ST", "STG", "STL", "STS")
	sharedSet = toSet("LDS", "LDSM", "STS")
)

func toSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// Name returns the mnemonic for op, or "" if op is out of range.
func (op Opcode) Name() string {
	if int(op) >= len(Names) {
		return ""
	}
	return Names[op]
}

// IsLoad reports whether op is one of the load-family instructions
// (LD/LDC/LDG/LDL/LDS/LDSM).
func (op Opcode) IsLoad() bool {
	_, ok := ldSet[op.Name()]
	return ok
}

// IsStore reports whether op is one of the store-family instructions
// (ST/STG/STL/STS).
func (op Opcode) IsStore() bool {
	_, ok := stSet[op.Name()]
	return ok
}

// IsSharedMemory reports whether op addresses shared memory
// (LDS/LDSM/STS), which bypasses the cache hierarchy entirely.
func (op Opcode) IsSharedMemory() bool {
	_, ok := sharedSet[op.Name()]
	return ok
}
