package model

import (
	"bufio"
	"fmt"
	"io"
)

// MaxLineSize is the longest trace line the parser and line lookups accept.
const MaxLineSize = 10 * 1024 * 1024

// LineContext represents a line from a trace with surrounding context
type LineContext struct {
	Before     []string `json:"before"`     // Up to radius lines before the target, oldest first
	Target     string   `json:"target"`     // The actual target line
	After      []string `json:"after"`      // Up to radius lines after the target
	LineNumber int      `json:"lineNumber"` // Line number of the target
	ErrorMsg   string   `json:"error,omitempty"`
}

// GetLineContext scans r and returns the target line with up to radius lines
// on either side. Traces can be large, so only the window is kept in memory.
func GetLineContext(r io.Reader, lineNumber, radius int) LineContext {
	result := LineContext{
		LineNumber: lineNumber,
	}
	if lineNumber < 1 {
		result.ErrorMsg = fmt.Sprintf("Line %d out of range", lineNumber)
		return result
	}
	if radius < 0 {
		radius = 0
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, MaxLineSize)

	currentLine := 0
	found := false
	for scanner.Scan() {
		currentLine++
		text := scanner.Text()

		switch {
		case currentLine < lineNumber:
			if currentLine >= lineNumber-radius {
				result.Before = append(result.Before, text)
			}
		case currentLine == lineNumber:
			result.Target = text
			found = true
		default:
			result.After = append(result.After, text)
		}

		if found && len(result.After) >= radius {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		result.ErrorMsg = fmt.Sprintf("Error reading trace: %v", err)
		return result
	}

	if !found {
		result.Before = nil
		result.ErrorMsg = fmt.Sprintf("Line %d out of range (trace has %d lines)", lineNumber, currentLine)
	}

	return result
}
