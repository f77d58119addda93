// Package monitor periodically writes the viewer's state to a status file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lookaround-map/viewer/internal/texture"
	"github.com/lookaround-map/viewer/pkg/core"
)

// DefaultInterval is how often the status file is rewritten.
const DefaultInterval = time.Second

// Viewer is the state the monitor reports on.
type Viewer interface {
	Current() core.Panorama
	Streamer() *texture.Streamer
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Viewer     Viewer
	Candidates func() int
	// Pending returns the number of panoramas waiting to be written to
	// storage. Optional.
	Pending  func() int
	Path     string
	Interval time.Duration
	Logger   *slog.Logger
}

// FaceStatus is the slot state of one side face.
type FaceStatus struct {
	Face    int    `json:"face"`
	Quality int    `json:"quality"`
	State   string `json:"state"`
}

// Status is a snapshot of the viewer.
type Status struct {
	Time          time.Time    `json:"time"`
	Panorama      string       `json:"panorama,omitempty"`
	Faces         []FaceStatus `json:"faces"`
	Candidates    int          `json:"candidates"`
	PendingWrites int          `json:"pendingWrites"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current viewer status.
func (s *Service) GetStatus() Status {
	st := Status{Time: time.Now()}

	if v := s.deps.Viewer; v != nil {
		st.Panorama = v.Current().ID
		streamer := v.Streamer()
		for f := core.FaceIndex(0); f < core.SideFaceCount; f++ {
			slot := streamer.Slot(f)
			st.Faces = append(st.Faces, FaceStatus{
				Face:    int(f),
				Quality: int(slot.Quality),
				State:   slot.State.String(),
			})
		}
	}
	if s.deps.Candidates != nil {
		st.Candidates = s.deps.Candidates()
	}
	if s.deps.Pending != nil {
		st.PendingWrites = s.deps.Pending()
	}
	return st
}

// WriteStatus replaces the status file contents with the current status.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(s.deps.Path, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Path == "" {
		s.mu.Unlock()
		return fmt.Errorf("status file path not set")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.deps.Path)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
