package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follower reads a file that another process is still appending to, like
// "tail -f". Read blocks at the end of the file until new data is written.
// Cancelling the context ends the stream with io.EOF.
type Follower struct {
	ctx     context.Context
	path    string
	file    *os.File
	watcher *fsnotify.Watcher
}

// Follow opens path for following from its first byte.
func Follow(ctx context.Context, path string) (*Follower, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stream file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating stream watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("watching stream dir: %w", err)
	}

	return &Follower{
		ctx:     ctx,
		path:    filepath.Clean(path),
		file:    file,
		watcher: watcher,
	}, nil
}

// Read implements io.Reader.
func (f *Follower) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if err := f.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the followed file changes.
func (f *Follower) wait() error {
	for {
		select {
		case <-f.ctx.Done():
			return io.EOF
		case event, ok := <-f.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			return nil
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("stream watcher error: %w", err)
		}
	}
}

// Close stops watching and closes the file.
func (f *Follower) Close() error {
	werr := f.watcher.Close()
	ferr := f.file.Close()
	return errors.Join(werr, ferr)
}
