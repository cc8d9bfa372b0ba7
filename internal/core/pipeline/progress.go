package pipeline

import (
	"fmt"
	"math"
)

// Progress checkpoints, in percent.
const (
	PercentAcquireStart  = 10
	PercentAcquireDone   = 30
	PercentSegmentStart  = 40
	PercentSegmentDone   = 50
	PercentRecognizeSpan = 40
	PercentAggregate     = 90
	PercentComplete      = 100
)

// Progress messages.
const (
	MsgAcquireStart = "Starting acquisition..."
	MsgAcquireDone  = "Acquisition completed"
	MsgSegmentStart = "Processing audio..."
	MsgSegmentDone  = "Audio processing completed"
	MsgAggregate    = "Aggregating transcript..."
	MsgComplete     = "Transcription completed successfully!"
)

// ChunkPercent returns the progress reported before recognizing chunk i
// (1-based) of n.
func ChunkPercent(i, n int) int {
	if n <= 0 {
		return PercentSegmentDone
	}
	return PercentSegmentDone + int(math.Round(float64(PercentRecognizeSpan*(i-1))/float64(n)))
}

// ChunkMessage returns the progress message for chunk i of n.
func ChunkMessage(i, n int) string {
	return fmt.Sprintf("Transcribing part %d of %d...", i, n)
}

// progressTracker keeps reported progress within [0, 100] and never lets
// it go down.
type progressTracker struct {
	percent int
}

func (p *progressTracker) advance(percent int) int {
	percent = min(max(percent, p.percent, 0), 100)
	p.percent = percent
	return percent
}
