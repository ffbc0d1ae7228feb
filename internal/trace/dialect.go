package trace

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// Dialect normalizes raw trace lines from a particular simulator before they
// reach the entry parser.
type Dialect interface {
	// Normalize returns the line to parse, or false to drop it.
	Normalize(line string) (string, bool)
	Name() string
}

// PlainDialect implements Dialect for logs that are already one
// "0x<pc> (0x<insn>) ..." record per line (RTL commit logs, filtered Spike).
type PlainDialect struct{}

func (d *PlainDialect) Normalize(line string) (string, bool) {
	return line, true
}

func (d *PlainDialect) Name() string {
	return "plain"
}

// spikePrefixRe matches the commit-log prefix "core   0: 3 " (hart id, then
// privilege level). Spike's disassembly lines carry no privilege digit and so
// never match.
var spikePrefixRe = regexp.MustCompile(`^core\s+\d+:\s+\d\s+`)

// SpikeDialect implements Dialect for raw Spike --log-commits output.
type SpikeDialect struct{}

func (d *SpikeDialect) Normalize(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	loc := spikePrefixRe.FindStringIndex(trimmed)
	if loc == nil {
		return "", false
	}
	return trimmed[loc[1]:], true
}

func (d *SpikeDialect) Name() string {
	return "spike"
}

// DetectDialect maps a dialect name to its implementation, defaulting to
// plain for anything unknown. "auto" is resolved per file by SniffDialect.
func DetectDialect(name string) Dialect {
	if strings.EqualFold(strings.TrimSpace(name), "spike") {
		return &SpikeDialect{}
	}
	return &PlainDialect{}
}

// sniffLines is how many non-blank lines SniffDialect inspects.
const sniffLines = 16

// SniffDialect guesses the dialect from the head of a trace.
func SniffDialect(head []byte) Dialect {
	scanner := bufio.NewScanner(bytes.NewReader(head))
	seen := 0
	for scanner.Scan() && seen < sniffLines {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		seen++
		if strings.HasPrefix(line, "core ") {
			return &SpikeDialect{}
		}
		if strings.HasPrefix(line, "0x") {
			return &PlainDialect{}
		}
	}
	return &PlainDialect{}
}
