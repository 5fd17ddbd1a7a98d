package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

// Source is the registry read side. The scheduler's trigger set is never
// authoritative: it is rebuilt from Source on startup and refreshed from it
// on every Reschedule.
type Source interface {
	ListActive(ctx context.Context) ([]domain.Participant, error)
	Get(ctx context.Context, id int64) (*domain.Participant, error)
}

// Dispatcher consumes fired triggers. It is invoked after the scheduler has
// already advanced the trigger to the next day, so a crash mid-dispatch can
// not produce a duplicate prompt. date is the local calendar date of the
// fired instant in the participant's timezone.
type Dispatcher interface {
	TriggerFired(ctx context.Context, participantID int64, date domain.Date)
}

// trigger is one pending firing; at most one exists per participant.
type trigger struct {
	participantID int64
	tz            string
	fireAt        time.Time
	index         int // heap bookkeeping
}

// triggerHeap orders by fire instant, ties by participant id.
type triggerHeap []*trigger

func (h triggerHeap) Len() int { return len(h) }
func (h triggerHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].participantID < h[j].participantID
	}
	return h[i].fireAt.Before(h[j].fireAt)
}
func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *triggerHeap) Push(x any) {
	tr := x.(*trigger)
	tr.index = len(*h)
	*h = append(*h, tr)
}
func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	tr := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return tr
}

// idleWait bounds the sleep when no triggers are pending; the wake channel
// interrupts it much earlier on any registry change.
const idleWait = time.Hour

// Scheduler maintains one pending trigger per active participant in a
// min-heap and dispatches prompt firings in non-decreasing instant order.
type Scheduler struct {
	source   Source
	dispatch Dispatcher
	prompt   domain.TimeOfDay // fixed local wall-clock prompt time
	log      *zap.Logger
	clock    clockwork.Clock

	mu   sync.Mutex
	pq   triggerHeap
	byID map[int64]*trigger
	wake chan struct{}
}

// New creates a Scheduler. prompt is the local wall-clock time at which the
// daily prompt fires in every participant's own timezone.
func New(source Source, dispatch Dispatcher, prompt domain.TimeOfDay, log *zap.Logger, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		source:   source,
		dispatch: dispatch,
		prompt:   prompt,
		log:      log,
		clock:    clock,
		byID:     make(map[int64]*trigger),
		wake:     make(chan struct{}, 1),
	}
}

// Run rebuilds triggers from the registry and processes them until ctx is
// canceled. Triggers whose instant passed while the process was down fire
// immediately, once each.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.rebuild(ctx); err != nil {
		return err
	}

	for {
		s.mu.Lock()
		wait := idleWait
		if len(s.pq) > 0 {
			wait = s.pq[0].fireAt.Sub(s.clock.Now())
		}
		s.mu.Unlock()

		if wait <= 0 {
			s.fireDue(ctx)
			continue
		}

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopping")
			return nil
		case <-timer.Chan():
			s.fireDue(ctx)
		case <-s.wake:
			// Registry changed; recompute the wait from the new heap top.
			timer.Stop()
		}
	}
}

// rebuild derives the full trigger set from persisted participant config.
func (s *Scheduler) rebuild(ctx context.Context) error {
	participants, err := s.source.ListActive(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pq = s.pq[:0]
	s.byID = make(map[int64]*trigger, len(participants))
	now := s.clock.Now()
	for i := range participants {
		p := &participants[i]
		next, err := domain.NextOccurrence(p.TZ, s.prompt, now)
		if err != nil {
			// Stored timezone no longer resolvable; skip rather than abort startup.
			s.log.Error("cannot schedule participant", zap.Int64("id", p.ID), zap.Error(err))
			continue
		}
		tr := &trigger{participantID: p.ID, tz: p.TZ, fireAt: next, index: len(s.pq)}
		s.pq = append(s.pq, tr)
		s.byID[p.ID] = tr
	}
	heap.Init(&s.pq)
	s.log.Info("triggers rebuilt", zap.Int("count", len(s.pq)))
	return nil
}

// fireDue advances and dispatches every trigger whose instant has passed.
// The heap mutation completes under the lock before any dispatch starts.
func (s *Scheduler) fireDue(ctx context.Context) {
	type firing struct {
		id   int64
		date domain.Date
	}

	s.mu.Lock()
	now := s.clock.Now()
	var due []firing
	for len(s.pq) > 0 && !s.pq[0].fireAt.After(now) {
		tr := s.pq[0]

		date, err := domain.LocalDate(tr.fireAt, tr.tz)
		if err != nil {
			s.log.Error("drop unresolvable trigger", zap.Int64("id", tr.participantID), zap.Error(err))
			heap.Pop(&s.pq)
			delete(s.byID, tr.participantID)
			continue
		}

		// Advance from now, not from the fired instant: a backlog of missed
		// days collapses into a single catch-up firing.
		base := now
		if !base.After(tr.fireAt) {
			base = tr.fireAt.Add(time.Second)
		}
		next, err := domain.NextOccurrence(tr.tz, s.prompt, base)
		if err != nil {
			s.log.Error("reschedule failed", zap.Int64("id", tr.participantID), zap.Error(err))
			heap.Pop(&s.pq)
			delete(s.byID, tr.participantID)
			continue
		}
		tr.fireAt = next
		heap.Fix(&s.pq, tr.index)

		due = append(due, firing{id: tr.participantID, date: date})
	}
	s.mu.Unlock()

	for _, f := range due {
		s.log.Debug("trigger fired", zap.Int64("id", f.id), zap.String("date", f.date.String()))
		go s.dispatch.TriggerFired(ctx, f.id, f.date)
	}
}

// Reschedule recomputes the trigger for a participant from its latest
// committed configuration. Inactive or missing participants lose their
// trigger. Implements registry.Notifier.
func (s *Scheduler) Reschedule(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := s.source.Get(ctx, id)
	if err != nil || !p.Active {
		s.Cancel(id)
		return
	}
	next, err := domain.NextOccurrence(p.TZ, s.prompt, s.clock.Now())
	if err != nil {
		s.log.Error("reschedule failed", zap.Int64("id", id), zap.Error(err))
		s.Cancel(id)
		return
	}

	s.mu.Lock()
	if tr, ok := s.byID[id]; ok {
		tr.tz = p.TZ
		tr.fireAt = next
		heap.Fix(&s.pq, tr.index)
	} else {
		tr := &trigger{participantID: id, tz: p.TZ, fireAt: next}
		heap.Push(&s.pq, tr)
		s.byID[id] = tr
	}
	s.mu.Unlock()
	s.wakeLoop()
}

// Cancel removes a participant's pending trigger, if any.
// Implements registry.Notifier.
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	if tr, ok := s.byID[id]; ok {
		heap.Remove(&s.pq, tr.index)
		delete(s.byID, id)
	}
	s.mu.Unlock()
	s.wakeLoop()
}

// NextFireAt reports the pending trigger instant for a participant.
func (s *Scheduler) NextFireAt(id int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.byID[id]
	if !ok {
		return time.Time{}, false
	}
	return tr.fireAt, true
}

func (s *Scheduler) wakeLoop() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
