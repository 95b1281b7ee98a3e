package tui

import (
	"sync"

	"github.com/jsildura/cloudstream-sub000/internal/download"
	"github.com/jsildura/cloudstream-sub000/internal/model"
)

const maxLogs = 10

// tracker collects progress from the download goroutine. The model polls
// it on every tick.
type tracker struct {
	mu        sync.Mutex
	tracks    []*model.Track
	current   *model.DownloadTask
	completed int
	bytesDone int64
	logs      []LogEntry
}

func newTracker() *tracker {
	return &tracker{}
}

// event receives manager progress events.
func (t *tracker) event(e download.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, LogEntry{Message: e.Message, Level: e.Level})
	if len(t.logs) > maxLogs*4 {
		t.logs = t.logs[len(t.logs)-maxLogs*4:]
	}
}

// reset prepares for a new job.
func (t *tracker) reset(tracks []*model.Track) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = tracks
	t.current = nil
	t.completed = 0
	t.bytesDone = 0
	t.logs = nil
}

func (t *tracker) trackProgress(index int, received, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.tracks) {
		return
	}
	track := t.tracks[index]
	if t.current == nil || t.current.Track != track {
		t.current = model.NewDownloadTask(track, track.FullTitle())
		t.current.State = model.TaskDownloading
	}
	t.current.ReceivedBytes = received
	t.current.TotalBytes = total
}

func (t *tracker) trackDone(completed, _ int, track *model.Track) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = completed
	if t.current != nil && t.current.Track == track {
		t.bytesDone += t.current.ReceivedBytes
		t.current.State = model.TaskCompleted
	}
}

// snapshot is a consistent copy of the tracker state.
type snapshot struct {
	total     int
	completed int
	received  int64
	current   *model.DownloadTask
	logs      []LogEntry
}

func (t *tracker) snapshot(verbose bool) snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := snapshot{total: len(t.tracks), completed: t.completed, received: t.bytesDone}
	if t.current != nil {
		cur := *t.current
		s.current = &cur
		if cur.State == model.TaskDownloading {
			s.received += cur.ReceivedBytes
		}
	}
	for _, l := range t.logs {
		if l.Level == download.LevelVerbose && !verbose {
			continue
		}
		s.logs = append(s.logs, l)
	}
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	return s
}
