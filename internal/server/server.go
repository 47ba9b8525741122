package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/hypersearch/internal/config"
	"github.com/copyleftdev/hypersearch/internal/logging"
	"github.com/copyleftdev/hypersearch/internal/metrics"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/parallel"
	"github.com/copyleftdev/hypersearch/internal/scoring"
	"github.com/copyleftdev/hypersearch/internal/study"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Search statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	errNotFound = errors.New("search not found")
	errBusy     = errors.New("too many searches running")
)

// invalidParamsError marks a request the caller has to fix.
type invalidParamsError struct{ err error }

func (e *invalidParamsError) Error() string { return e.err.Error() }
func (e *invalidParamsError) Unwrap() error { return e.err }

// conflictError reports an operation that the search's status does not allow.
type conflictError struct{ status string }

func (e *conflictError) Error() string {
	return "cannot cancel search with status: " + e.status
}

// SearchState tracks one search submitted to the server. Fields are guarded
// by Server.searchesMu.
type SearchState struct {
	ID          string
	Name        string
	Status      string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Progress    map[int]optimization.ProgressUpdate
	Outcome     *parallel.Outcome
	Err         error
	CancelFunc  context.CancelFunc
}

// Server implements the HTTP and JSON-RPC API of the search service.
// It starts searches in the background and lets clients poll and cancel them.
type Server struct {
	cfg      *config.Config
	logger   Logger
	zap      *zap.Logger
	registry *scoring.Registry
	compiler *study.Compiler
	metrics  *metrics.Collectors

	searches   map[string]*SearchState
	searchesMu sync.RWMutex
	// slots bounds the number of searches running at once.
	slots chan struct{}
	wg    sync.WaitGroup
}

// Option customizes a Server.
type Option func(*Server)

// WithRegistry replaces the built-in scorer registry.
func WithRegistry(r *scoring.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithMetrics reports engine activity to c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Server) { s.metrics = c }
}

// WithZapLogger sets the logger handed to the search engine. By default the
// engine logs through the server logger.
func WithZapLogger(l *zap.Logger) Option {
	return func(s *Server) { s.zap = l }
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: scoring.Default(),
		searches: make(map[string]*SearchState),
		slots:    make(chan struct{}, cfg.Search.MaxConcurrent),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.zap == nil {
		s.zap = logging.NewZapLogger(logger.WithFields(nil))
	}

	limits, err := study.LimitsFromConfig(cfg.Search)
	if err != nil {
		return nil, err
	}
	s.compiler = &study.Compiler{Registry: s.registry, Limits: limits, Logger: s.zap}
	return s, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/searches", s.handleCreateSearch)
		r.Get("/searches", s.handleListSearches)
		r.Get("/searches/{id}", s.handleGetSearch)
		r.Delete("/searches/{id}", s.handleCancelSearch)
		r.Get("/scorers", s.handleListScorers)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startSearch compiles def and runs it in the background.
func (s *Server) startSearch(def *study.Definition) (*SearchState, error) {
	req, err := s.compiler.Compile(def)
	if err != nil {
		return nil, &invalidParamsError{err}
	}

	select {
	case s.slots <- struct{}{}:
	default:
		return nil, errBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &SearchState{
		ID:          uuid.NewString(),
		Name:        def.Name,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Progress:    make(map[int]optimization.ProgressUpdate),
		CancelFunc:  cancel,
	}

	s.searchesMu.Lock()
	s.searches[state.ID] = state
	s.searchesMu.Unlock()

	s.logger.Info("Search submitted", map[string]interface{}{
		"search_id":  state.ID,
		"name":       def.Name,
		"jobs":       req.Jobs,
		"iterations": req.Iterations,
	})

	s.wg.Add(1)
	go s.runSearch(ctx, state, *req)
	return state, nil
}

// runSearch executes the search and records its outcome.
func (s *Server) runSearch(ctx context.Context, state *SearchState, req parallel.Request) {
	defer s.wg.Done()
	defer func() { <-s.slots }()
	defer state.CancelFunc()

	s.searchesMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
	}
	s.searchesMu.Unlock()

	var observer optimization.Observer
	sinks := optimization.MultiSink{optimization.ProgressFunc(func(u optimization.ProgressUpdate) {
		s.searchesMu.Lock()
		state.Progress[u.JobID] = u
		state.LastUpdated = time.Now()
		s.searchesMu.Unlock()
	})}
	if s.metrics != nil {
		observer = s.metrics
		sinks = append(sinks, s.metrics)
		s.metrics.SearchStarted()
		defer s.metrics.SearchFinished()
	}
	req.Progress = sinks

	coord := parallel.New(s.zap.With(zap.String("search_id", state.ID)), observer)
	outcome, err := coord.Run(ctx, req)

	s.searchesMu.Lock()
	defer s.searchesMu.Unlock()

	now := time.Now()
	state.LastUpdated = now
	if state.Status == StatusCancelled {
		return
	}
	state.EndTime = &now
	if err != nil {
		fields := map[string]interface{}{
			"search_id": state.ID,
			"error":     err.Error(),
		}
		var failure *optimization.JobFailure
		if errors.As(err, &failure) {
			fields["job_id"] = failure.JobID
		}
		if oe, ok := optimization.IsOptimizationError(err); ok {
			fields["component"] = oe.Component
			fields["operation"] = oe.Op
		}
		s.logger.Error("Search failed", fields)
		state.Status = StatusFailed
		state.Err = err
		return
	}
	state.Status = StatusCompleted
	state.Outcome = outcome
	s.logger.Info("Search completed", map[string]interface{}{
		"search_id":  state.ID,
		"best_score": outcome.Best.BestScore,
		"best_model": outcome.Best.Model,
	})
}

// cancelSearch stops a pending or running search.
func (s *Server) cancelSearch(id string) error {
	s.searchesMu.Lock()
	defer s.searchesMu.Unlock()

	state, exists := s.searches[id]
	if !exists {
		return errNotFound
	}

	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return &conflictError{status: state.Status}
	}

	state.CancelFunc()
	state.Status = StatusCancelled
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Search cancelled", map[string]interface{}{
		"search_id": id,
	})
	return nil
}

// searchStatus snapshots a search for rendering.
func (s *Server) searchStatus(id string) (*statusView, error) {
	s.searchesMu.RLock()
	defer s.searchesMu.RUnlock()

	state, exists := s.searches[id]
	if !exists {
		return nil, errNotFound
	}
	return newStatusView(state), nil
}

// listSearches snapshots every search, newest first.
func (s *Server) listSearches() []summaryView {
	s.searchesMu.RLock()
	defer s.searchesMu.RUnlock()

	out := make([]summaryView, 0, len(s.searches))
	for _, state := range s.searches {
		out = append(out, newSummaryView(state))
	}
	sortSummaries(out)
	return out
}

// Close cancels every search and waits for them to stop.
func (s *Server) Close() error {
	s.searchesMu.Lock()
	for _, state := range s.searches {
		if state.CancelFunc != nil {
			state.CancelFunc()
		}
	}
	s.searchesMu.Unlock()

	s.wg.Wait()
	return nil
}
