package auth

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher keeps a TokenSource in step with a token file.
//
// The parent directory is watched rather than the file itself so that
// atomic replace-by-rename (as done by WriteTokenFile) and deletion are both
// observed. Create and write events reload the file; remove and rename
// events clear the token.
type FileWatcher struct {
	path    string
	source  *TokenSource
	logger  *log.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewFileWatcher creates a watcher binding path to source. logger may be nil.
// The watcher must be started with Start() before it reacts to changes.
func NewFileWatcher(path string, source *TokenSource, logger *log.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token path: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &FileWatcher{
		path:   abs,
		source: source,
		logger: logger,
	}, nil
}

// Start loads the current file contents into the source and begins watching.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(fw.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fw.reload()

	fw.watcher = watcher
	fw.done = make(chan struct{})
	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching and blocks until the event goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Run starts the watcher and stops it when ctx is cancelled.
func (fw *FileWatcher) Run(ctx context.Context) error {
	if err := fw.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return fw.Stop()
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				fw.reload()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				fw.logger.Printf("token file removed, credential cleared")
				fw.source.Clear()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Printf("WARNING: token watcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) reload() {
	token, err := ReadTokenFile(fw.path)
	if err != nil {
		fw.logger.Printf("WARNING: %v", err)
		return
	}
	had := fw.source.HasToken()
	fw.source.Set(token)
	switch {
	case token != "" && !had:
		fw.logger.Printf("credential loaded from %s", fw.path)
	case token == "" && had:
		fw.logger.Printf("token file empty, credential cleared")
	}
}
