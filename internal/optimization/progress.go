package optimization

// ProgressUpdate reports how far one job has advanced through its budget.
type ProgressUpdate struct {
	JobID     int
	Model     string
	Completed int
	Budget    int
	BestScore float64
}

// Fraction returns completed/budget in [0,1]. A zero budget counts as done.
func (u ProgressUpdate) Fraction() float64 {
	if u.Budget <= 0 {
		return 1
	}
	return float64(u.Completed) / float64(u.Budget)
}

// ProgressSink receives progress updates. Implementations must not block the
// search loop.
type ProgressSink interface {
	Report(update ProgressUpdate)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ProgressUpdate)

// Report calls f(update).
func (f ProgressFunc) Report(update ProgressUpdate) { f(update) }

// ChannelSink forwards updates to a channel, dropping them when the channel
// is full.
type ChannelSink chan<- ProgressUpdate

// Report sends without blocking.
func (s ChannelSink) Report(update ProgressUpdate) {
	select {
	case s <- update:
	default:
	}
}

// MultiSink fans an update out to several sinks.
type MultiSink []ProgressSink

// Report forwards to every non-nil sink.
func (m MultiSink) Report(update ProgressUpdate) {
	for _, s := range m {
		if s != nil {
			s.Report(update)
		}
	}
}
