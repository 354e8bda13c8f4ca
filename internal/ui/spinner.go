package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner is a blocking-free line spinner for work done before the
// session UI takes over the terminal.
type Spinner struct {
	mu       sync.Mutex
	message  string
	frames   []string
	interval time.Duration
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func NewSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Dot)
}

// NewConnectionSpinner uses the globe frames for network waits.
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe)
}

func newSpinner(message string, s spinner.Spinner) *Spinner {
	return &Spinner{
		message:  message,
		frames:   s.Frames,
		interval: s.FPS,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	go func() {
		defer close(s.exited)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(Output, "\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), msg)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. It must follow Start.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.exited
		fmt.Fprint(Output, "\r\033[K")
	})
}

func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *Spinner) Success(message string) {
	s.Stop()
	PrintSuccess(message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	PrintError(message)
}
