package pipeline

import "sync"

// Band maps a named stage onto a fixed slice of the overall progress
// percentage
type Band struct {
	Stage string
	Start float64
	End   float64
}

// DefaultBands returns the stage weighting for document extraction:
// text extraction dominates, entity work closes out the last fifteen
// percent.
func DefaultBands() []Band {
	return []Band{
		{Stage: StageExtraction, Start: 0, End: 40},
		{Stage: StageOCR, Start: 40, End: 70},
		{Stage: StageTables, Start: 70, End: 85},
		{Stage: StageEntities, Start: 85, End: 100},
	}
}

// Stage names used by the document handlers. StageError and
// StageCancelled only ever appear on terminal snapshots stamped by the
// queue.
const (
	StageExtraction = "extraction"
	StageOCR        = "ocr"
	StageTables     = "tables"
	StageEntities   = "entities"
	StageUpload     = "upload"
	StageError      = "error"
	StageCancelled  = "cancelled"
)

// Tracker converts per-stage completion into overall task progress.
// Overall progress never decreases, whatever order stages report in,
// so a late report from an earlier stage cannot drag the number back.
type Tracker struct {
	mu      sync.Mutex
	bands   map[string]Band
	percent float64
	report  ProgressFunc
}

// NewTracker creates a tracker over the default bands. report may be
// nil when only Percent is of interest.
func NewTracker(report ProgressFunc) *Tracker {
	return NewTrackerWithBands(report, DefaultBands())
}

// NewTrackerWithBands creates a tracker with custom stage bands
func NewTrackerWithBands(report ProgressFunc, bands []Band) *Tracker {
	byStage := make(map[string]Band, len(bands))
	for _, b := range bands {
		byStage[b.Stage] = b
	}
	return &Tracker{bands: byStage, report: report}
}

// Update records that done of total units finished within a stage and
// reports the resulting overall percentage. Reports for unknown stages
// are dropped.
func (t *Tracker) Update(stage string, done, total int) {
	t.mu.Lock()
	band, ok := t.bands[stage]
	if !ok {
		t.mu.Unlock()
		return
	}

	fraction := 0.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	percent := band.Start + fraction*(band.End-band.Start)
	if percent > t.percent {
		t.percent = percent
	}
	percent = t.percent
	report := t.report
	t.mu.Unlock()

	if report != nil {
		report(stage, percent)
	}
}

// Complete marks a whole stage finished. Skipped stages can be
// completed in order to jump the percentage forward.
func (t *Tracker) Complete(stage string) {
	t.Update(stage, 1, 1)
}

// Percent returns the current overall percentage
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}
