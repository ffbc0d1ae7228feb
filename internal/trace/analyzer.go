package trace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tracediff/internal/model"
)

// BuildReport assembles statistics, loop patterns and hunks for one
// comparison. It only counts; the script must come from Align.
func BuildReport(left, right, cleanedLeft, cleanedRight []model.TraceEntry, script []model.EditOp, patterns []model.PatternRecord, contextSize int) model.Report {
	stats := model.Statistics{
		LeftParsed:   len(left),
		RightParsed:  len(right),
		LeftEntries:  len(cleanedLeft),
		RightEntries: len(cleanedRight),
		LoopsRemoved: (len(left) - len(cleanedLeft)) + (len(right) - len(cleanedRight)),
		PatternCount: len(patterns),
	}

	for _, op := range script {
		switch op.Kind {
		case model.OpMatch:
			stats.Matches++
		case model.OpLeftOnly:
			stats.LeftOnly++
		case model.OpRightOnly:
			stats.RightOnly++
		}
	}
	stats.LCSLength = stats.Matches
	if total := stats.Matches + stats.LeftOnly + stats.RightOnly; total > 0 {
		stats.MatchPercent = float64(stats.Matches) / float64(total) * 100
	}

	// Empty slices rather than nil so JSON consumers always see arrays.
	hunks := GroupHunks(script, contextSize)
	if hunks == nil {
		hunks = []model.Hunk{}
	}
	if script == nil {
		script = []model.EditOp{}
	}

	return model.Report{
		Stats:      stats,
		Patterns:   append([]model.PatternRecord{}, patterns...),
		EditScript: script,
		Hunks:      hunks,
	}
}

// Comparator runs the whole pipeline: loop suppression, alignment, grouping.
// It holds configuration only, so one Comparator can serve concurrent calls.
type Comparator struct {
	logger           *zap.Logger
	minPatternLength int
	minRepetitions   int
	contextSize      int
	aligner          Aligner
	now              func() time.Time
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLoopDetection sets the loop suppression thresholds.
func WithLoopDetection(minPatternLength, minRepetitions int) Option {
	return func(c *Comparator) {
		c.minPatternLength = minPatternLength
		c.minRepetitions = minRepetitions
	}
}

// WithContextSize sets how many matching entries surround each hunk.
func WithContextSize(n int) Option {
	return func(c *Comparator) {
		c.contextSize = n
	}
}

// WithMaxCells bounds the alignment table.
func WithMaxCells(n int64) Option {
	return func(c *Comparator) {
		c.aligner.MaxCells = n
	}
}

// NewComparator creates a Comparator with the default thresholds.
func NewComparator(opts ...Option) *Comparator {
	c := &Comparator{
		logger:           zap.NewNop(),
		minPatternLength: DefaultMinPatternLength,
		minRepetitions:   DefaultMinRepetitions,
		contextSize:      DefaultContextSize,
		aligner:          Aligner{MaxCells: DefaultMaxCells},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompareFiles loads both traces concurrently and compares them. A nil
// dialect sniffs each file independently.
func (c *Comparator) CompareFiles(ctx context.Context, leftPath, rightPath string, dialect Dialect) (model.Report, error) {
	var left, right TraceFile

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		left, err = LoadTrace(gctx, leftPath, dialect)
		return err
	})
	g.Go(func() error {
		var err error
		right, err = LoadTrace(gctx, rightPath, dialect)
		return err
	})
	if err := g.Wait(); err != nil {
		c.observe(err)
		return model.Report{}, err
	}
	stageDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())

	c.logger.Info("Loaded traces",
		zap.String("left", left.Info.Name),
		zap.Int("leftEntries", len(left.Entries)),
		zap.Int("leftLines", left.Info.Lines),
		zap.String("right", right.Info.Name),
		zap.Int("rightEntries", len(right.Entries)),
		zap.Int("rightLines", right.Info.Lines))

	return c.Compare(ctx, left, right)
}

// Compare runs loop suppression on each side, aligns the cleaned traces and
// builds the report. Cancellation is honored between stages only; the table
// fill itself is not interruptible.
func (c *Comparator) Compare(ctx context.Context, left, right TraceFile) (model.Report, error) {
	report, err := c.compare(ctx, left, right)
	c.observe(err)
	if err == nil {
		if report.Identical() {
			comparisonsTotal.WithLabelValues("identical").Inc()
		} else {
			comparisonsTotal.WithLabelValues("diverged").Inc()
		}
	}
	return report, err
}

func (c *Comparator) compare(ctx context.Context, left, right TraceFile) (model.Report, error) {
	if err := ctx.Err(); err != nil {
		return model.Report{}, err
	}

	// Step 1: loop suppression, each side on its own
	start := time.Now()
	var (
		cleanLeft, cleanRight       []model.TraceEntry
		leftPatterns, rightPatterns []model.PatternRecord
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cleanLeft, leftPatterns = SuppressLoops(left.Entries, c.minPatternLength, c.minRepetitions)
	}()
	go func() {
		defer wg.Done()
		cleanRight, rightPatterns = SuppressLoops(right.Entries, c.minPatternLength, c.minRepetitions)
	}()
	wg.Wait()
	stageDuration.WithLabelValues("suppress").Observe(time.Since(start).Seconds())

	patterns := make([]model.PatternRecord, 0, len(leftPatterns)+len(rightPatterns))
	for _, p := range leftPatterns {
		p.Side = "left"
		patterns = append(patterns, p)
	}
	for _, p := range rightPatterns {
		p.Side = "right"
		patterns = append(patterns, p)
	}
	removedLeft := len(left.Entries) - len(cleanLeft)
	removedRight := len(right.Entries) - len(cleanRight)
	loopEntriesRemoved.WithLabelValues("left").Add(float64(removedLeft))
	loopEntriesRemoved.WithLabelValues("right").Add(float64(removedRight))

	c.logger.Debug("Loop suppression done",
		zap.Int("patterns", len(patterns)),
		zap.Int("removedLeft", removedLeft),
		zap.Int("removedRight", removedRight),
		zap.Duration("elapsed", time.Since(start)))

	// Step 2: alignment
	if err := ctx.Err(); err != nil {
		return model.Report{}, err
	}
	start = time.Now()
	alignmentCells.Observe(float64(len(cleanLeft)+1) * float64(len(cleanRight)+1))
	script, err := c.aligner.Align(cleanLeft, cleanRight)
	if err != nil {
		c.logger.Warn("Alignment refused", zap.Error(err))
		return model.Report{}, err
	}
	stageDuration.WithLabelValues("align").Observe(time.Since(start).Seconds())
	c.logger.Debug("Alignment done",
		zap.Int("ops", len(script)),
		zap.Duration("elapsed", time.Since(start)))

	// Step 3: hunks and statistics
	if err := ctx.Err(); err != nil {
		return model.Report{}, err
	}
	start = time.Now()
	report := BuildReport(left.Entries, right.Entries, cleanLeft, cleanRight, script, patterns, c.contextSize)
	stageDuration.WithLabelValues("report").Observe(time.Since(start).Seconds())

	report.ID = uuid.NewString()
	report.GeneratedAt = c.now().UTC()
	report.Left = left.Info
	report.Right = right.Info

	c.logger.Info("Comparison completed",
		zap.String("id", report.ID),
		zap.Int("lcsLength", report.Stats.LCSLength),
		zap.Int("hunks", len(report.Hunks)),
		zap.Float64("matchPercent", report.Stats.MatchPercent))

	return report, nil
}

func (c *Comparator) observe(err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		comparisonsTotal.WithLabelValues("canceled").Inc()
	default:
		comparisonsTotal.WithLabelValues("error").Inc()
	}
}
