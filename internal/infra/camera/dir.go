package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/ports/adapter"
)

var _ adapter.FrameSource = (*DirSource)(nil)

// DirSource reads frames that an external capture tool drops into a spool
// directory. A frame is ready once the most recently written file decodes.
type DirSource struct {
	dir string
	log *zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending string
	seq     uint64
	done    chan struct{}
}

func NewDirSource(dir string, logger *zerolog.Logger) *DirSource {
	l := logger.With().Str("component", "DirSource").Str("dir", dir).Logger()
	return &DirSource{dir: dir, log: &l}
}

func (s *DirSource) Start(ctx context.Context, _ adapter.DeviceRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}
	fi, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrCameraUnavailable, s.dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}

	s.Stop()
	s.mu.Lock()
	s.watcher = w
	s.pending = ""
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.watch(w, done)
	return nil
}

func (s *DirSource) watch(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !isFrameFile(ev.Name) {
				continue
			}
			s.mu.Lock()
			if s.watcher == w {
				s.pending = ev.Name
			}
			s.mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (s *DirSource) NextReadyFrame() (adapter.Frame, bool) {
	s.mu.Lock()
	path := s.pending
	s.pending = ""
	s.mu.Unlock()
	if path == "" {
		return adapter.Frame{}, false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return adapter.Frame{}, false
	}
	f, err := DecodeImage(b)
	if err != nil {
		// still being written; the next write event re-arms it
		s.log.Trace().Str("file", filepath.Base(path)).Msg("frame not ready")
		return adapter.Frame{}, false
	}

	s.mu.Lock()
	s.seq++
	f.Seq = s.seq
	s.mu.Unlock()
	return f, true
}

func (s *DirSource) Stop() {
	s.mu.Lock()
	w, done := s.watcher, s.done
	s.watcher, s.done, s.pending = nil, nil, ""
	s.mu.Unlock()
	if w == nil {
		return
	}
	_ = w.Close()
	<-done
	s.mu.Lock()
	if s.watcher == nil {
		s.pending = ""
	}
	s.mu.Unlock()
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
