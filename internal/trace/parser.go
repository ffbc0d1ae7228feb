package trace

import (
	"bufio"
	"context"
	"io"

	"tracediff/internal/model"
)

// Parser turns raw trace text into entries.
type Parser struct {
	dialect Dialect
}

// NewParser creates a new Parser that normalizes lines with the given dialect.
func NewParser(dialect Dialect) *Parser {
	if dialect == nil {
		dialect = &PlainDialect{}
	}
	return &Parser{dialect: dialect}
}

// Parse reads the trace stream and returns a channel of entries.
// It runs asynchronously; the goroutine exits at EOF, on a read error, or
// when ctx is canceled.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (<-chan model.TraceEntry, <-chan error) {
	entries := make(chan model.TraceEntry, 256)
	errs := make(chan error, 1) // Buffered to avoid blocking if receiver stops

	go func() {
		defer close(entries)
		defer close(errs)

		_, err := p.scan(ctx, r, func(e model.TraceEntry) bool {
			select {
			case entries <- e:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return entries, errs
}

// ParseAll reads the whole stream and returns every entry plus the number of
// raw lines seen.
func (p *Parser) ParseAll(ctx context.Context, r io.Reader) ([]model.TraceEntry, int, error) {
	var out []model.TraceEntry
	lines, err := p.scan(ctx, r, func(e model.TraceEntry) bool {
		out = append(out, e)
		return true
	})
	if err != nil {
		return nil, lines, err
	}
	return out, lines, nil
}

// ctxCheckInterval is how many lines are scanned between context checks.
const ctxCheckInterval = 4096

func (p *Parser) scan(ctx context.Context, r io.Reader, emit func(model.TraceEntry) bool) (int, error) {
	scanner := bufio.NewScanner(r)
	// Large buffer for long side-effect lists (vector registers)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, model.MaxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return lineNum, err
			}
		}

		line, ok := p.dialect.Normalize(scanner.Text())
		if !ok {
			continue
		}
		entry, ok := model.ParseEntry(line, lineNum)
		if !ok {
			continue
		}
		if !emit(entry) {
			return lineNum, ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return lineNum, err
	}
	return lineNum, nil
}
