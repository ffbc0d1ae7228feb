package model

import (
	"regexp"
	"strings"
)

// entryRe matches one committed-instruction record: 0x<pc> (0x<insn>)<rest>
var entryRe = regexp.MustCompile(`^0x([0-9a-fA-F]+)\s+\(0x([0-9a-fA-F]+)\)(.*)$`)

// TraceEntry is one committed instruction from an execution trace.
type TraceEntry struct {
	PC          string `json:"pc"`          // Program counter, uppercase hex without 0x
	Instruction string `json:"instruction"` // Encoded instruction word, uppercase hex without 0x
	Extra       string `json:"extra"`       // Side effects (register writes, memory, CSRs), verbatim
	Original    string `json:"original"`    // The trimmed source line
	LineNumber  int    `json:"lineNumber"`  // 1-based line in the source trace
}

// ParseEntry parses a single trace line. Lines that are not instruction
// records (blank, headers, garbage) return false.
func ParseEntry(line string, lineNumber int) (TraceEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return TraceEntry{}, false
	}

	m := entryRe.FindStringSubmatch(line)
	if m == nil {
		return TraceEntry{}, false
	}

	return TraceEntry{
		PC:          strings.ToUpper(m[1]),
		Instruction: strings.ToUpper(m[2]),
		Extra:       strings.TrimSpace(m[3]),
		Original:    line,
		LineNumber:  lineNumber,
	}, true
}

// PatternKey identifies the instruction only (PC and encoding). Loop
// detection uses it so that spinning with drifting register values still
// counts as the same pattern.
func (e TraceEntry) PatternKey() string {
	return e.PC + ":" + e.Instruction
}

// FullKey is the identity used for alignment: PC, encoding and side effects.
func (e TraceEntry) FullKey() string {
	return e.PC + ":" + e.Instruction + ":" + e.Extra
}

// Equal reports whether both entries have the same FullKey. LineNumber and
// Original are ignored.
func (e TraceEntry) Equal(o TraceEntry) bool {
	return e.PC == o.PC && e.Instruction == o.Instruction && e.Extra == o.Extra
}
