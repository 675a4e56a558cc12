package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reframe/internal/logging"
)

// Source delivers paths created in the watched directory. Events and Errors
// are closed after Close returns.
type Source interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// NotifySource reports Create events for one directory (non-recursive). Files
// renamed into the directory surface as Create as well.
type NotifySource struct {
	watcher *fsnotify.Watcher
	events  chan string
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewNotifySource starts watching dir.
func NewNotifySource(dir string) (*NotifySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	s := &NotifySource{
		watcher: watcher,
		events:  make(chan string, 64),
		errors:  make(chan error, 8),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *NotifySource) loop() {
	defer s.wg.Done()
	defer close(s.events)
	defer close(s.errors)
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			select {
			case s.events <- event.Name:
			case <-s.done:
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			case <-s.done:
				return
			}
		}
	}
}

func (s *NotifySource) Events() <-chan string { return s.events }

func (s *NotifySource) Errors() <-chan error { return s.errors }

// Close stops the watcher and waits for the forwarding goroutine.
func (s *NotifySource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}

// PollSource lists a directory every interval and reports names that were not
// present in the previous listing. The first listing is the baseline and
// reports nothing.
type PollSource struct {
	dir      string
	interval time.Duration
	logger   *slog.Logger

	events chan string
	errors chan error
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPollSource takes the baseline listing of dir and starts polling.
func NewPollSource(dir string, interval time.Duration, logger *slog.Logger) (*PollSource, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	seen, err := listNames(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PollSource{
		dir:      dir,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "poll"),
		events:   make(chan string, 64),
		errors:   make(chan error, 8),
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.loop(ctx, seen)
	return s, nil
}

func (s *PollSource) loop(ctx context.Context, seen map[string]struct{}) {
	defer s.wg.Done()
	defer close(s.events)
	defer close(s.errors)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		current, err := listNames(s.dir)
		if err != nil {
			select {
			case s.errors <- err:
			case <-ctx.Done():
				return
			}
			continue
		}
		for name := range current {
			if _, ok := seen[name]; ok {
				continue
			}
			s.logger.Debug("new directory entry", logging.String("name", name))
			select {
			case s.events <- filepath.Join(s.dir, name):
			case <-ctx.Done():
				return
			}
		}
		seen = current
	}
}

func (s *PollSource) Events() <-chan string { return s.events }

func (s *PollSource) Errors() <-chan error { return s.errors }

// Close stops polling.
func (s *PollSource) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}

func listNames(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = struct{}{}
	}
	return names, nil
}
