package server

import (
	"sort"
	"time"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

type jobView struct {
	JobID     int     `json:"job_id"`
	Model     string  `json:"model"`
	Completed int     `json:"completed"`
	Budget    int     `json:"budget"`
	Fraction  float64 `json:"fraction"`
	BestScore float64 `json:"best_score"`
}

type resultView struct {
	JobID             int                        `json:"job_id"`
	Model             string                     `json:"model"`
	Strategy          string                     `json:"strategy"`
	BestPosition      optimization.Position      `json:"best_position"`
	BestScore         float64                    `json:"best_score"`
	BestConfiguration optimization.Configuration `json:"best_configuration"`
	Iterations        int                        `json:"iterations"`
	Evaluations       int                        `json:"evaluations"`
	CacheHits         int                        `json:"cache_hits"`
	DurationMs        float64                    `json:"duration_ms"`
}

type failureView struct {
	JobID int    `json:"job_id"`
	Error string `json:"error"`
}

type statusView struct {
	ID         string        `json:"search_id"`
	Name       string        `json:"name,omitempty"`
	Status     string        `json:"status"`
	Progress   float64       `json:"progress"`
	StartTime  string        `json:"start_time"`
	EndTime    string        `json:"end_time,omitempty"`
	LastUpdate string        `json:"last_update"`
	Jobs       []jobView     `json:"jobs"`
	Best       *resultView   `json:"best,omitempty"`
	Ranked     []resultView  `json:"ranked,omitempty"`
	Failures   []failureView `json:"failures,omitempty"`
	Dropped    []string      `json:"dropped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type summaryView struct {
	ID        string  `json:"search_id"`
	Name      string  `json:"name,omitempty"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	StartTime string  `json:"start_time"`

	started time.Time
}

func newResultView(r *optimization.SearchResult) resultView {
	return resultView{
		JobID:             r.JobID,
		Model:             r.Model,
		Strategy:          r.Strategy,
		BestPosition:      r.BestPosition,
		BestScore:         r.BestScore,
		BestConfiguration: r.BestConfiguration,
		Iterations:        r.Iterations,
		Evaluations:       r.Evaluations,
		CacheHits:         r.CacheHits,
		DurationMs:        float64(r.Duration.Microseconds()) / 1000.0,
	}
}

// progress is the share of the total budget consumed so far. Finished
// searches report 1.
func progress(state *SearchState) float64 {
	if state.Status == StatusCompleted {
		return 1
	}
	var done, total int
	for _, u := range state.Progress {
		done += u.Completed
		total += u.Budget
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func newStatusView(state *SearchState) *statusView {
	v := &statusView{
		ID:         state.ID,
		Name:       state.Name,
		Status:     state.Status,
		Progress:   progress(state),
		StartTime:  state.StartTime.Format(time.RFC3339),
		LastUpdate: state.LastUpdated.Format(time.RFC3339),
		Jobs:       make([]jobView, 0, len(state.Progress)),
	}
	if state.EndTime != nil {
		v.EndTime = state.EndTime.Format(time.RFC3339)
	}

	for _, u := range state.Progress {
		v.Jobs = append(v.Jobs, jobView{
			JobID:     u.JobID,
			Model:     u.Model,
			Completed: u.Completed,
			Budget:    u.Budget,
			Fraction:  u.Fraction(),
			BestScore: u.BestScore,
		})
	}
	sort.Slice(v.Jobs, func(i, j int) bool { return v.Jobs[i].JobID < v.Jobs[j].JobID })

	if out := state.Outcome; out != nil {
		best := newResultView(out.Best)
		v.Best = &best
		for _, r := range out.Ranked {
			v.Ranked = append(v.Ranked, newResultView(r))
		}
		for _, f := range out.Failures {
			v.Failures = append(v.Failures, failureView{JobID: f.JobID, Error: f.Cause.Error()})
		}
		v.Dropped = out.Dropped
	}
	if state.Err != nil {
		v.Error = state.Err.Error()
	}
	return v
}

func newSummaryView(state *SearchState) summaryView {
	return summaryView{
		ID:        state.ID,
		Name:      state.Name,
		Status:    state.Status,
		Progress:  progress(state),
		StartTime: state.StartTime.Format(time.RFC3339),
		started:   state.StartTime,
	}
}

func sortSummaries(s []summaryView) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].started.Equal(s[j].started) {
			return s[i].started.After(s[j].started)
		}
		return s[i].ID < s[j].ID
	})
}
