package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Subscriber receives a task snapshot on every state or progress change
type Subscriber func(ProcessingTask)

// Queue owns the task list and its lifecycle. A bounded worker pool
// pulls the oldest pending task when a slot frees; there is no priority
// beyond FIFO. All task mutation goes through the queue's transition
// methods, and terminal states are sticky: once a task is completed or
// failed, late progress reports and duplicate completions are dropped.
//
// Subscribers are notified from a single dispatch goroutine, so they
// observe transitions in the order they happened. Notifications are
// delivered only while Run is active.
type Queue struct {
	registry *Registry
	workers  int
	logger   *logrus.Logger

	mu      sync.Mutex
	tasks   map[string]*ProcessingTask
	order   []string
	pending []string
	cancels map[string]context.CancelFunc
	paused  bool
	subs    map[int]Subscriber
	nextSub int
	events  []ProcessingTask

	wake    chan struct{}
	eventCh chan struct{}

	runOnce sync.Once
	wg      sync.WaitGroup
}

// NewQueue creates a queue dispatching to at most workers concurrent
// handlers from the registry
func NewQueue(workers int, registry *Registry) *Queue {
	if workers < 1 {
		workers = 1
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Queue{
		registry: registry,
		workers:  workers,
		logger:   logger,
		tasks:    make(map[string]*ProcessingTask),
		cancels:  make(map[string]context.CancelFunc),
		subs:     make(map[int]Subscriber),
		wake:     make(chan struct{}, 1),
		eventCh:  make(chan struct{}, 1),
	}
}

// Run starts the worker pool and the notification dispatcher. It
// returns immediately; cancel ctx to stop, then Wait for drain.
// Calling Run more than once has no effect.
func (q *Queue) Run(ctx context.Context) {
	q.runOnce.Do(func() {
		q.wg.Add(q.workers + 1)
		go q.dispatcher(ctx)
		for i := 0; i < q.workers; i++ {
			go q.worker(ctx)
		}
		q.logger.WithField("workers", q.workers).Info("Processing queue started")
	})
}

// Wait blocks until every worker and the dispatcher have exited
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Enqueue inserts a task as pending at the back of the queue. The id
// must be unique across the queue's history; a blank id is assigned.
// The normalized snapshot is returned.
func (q *Queue) Enqueue(task ProcessingTask) (ProcessingTask, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.Status = StatusPending
	task.Progress = 0
	task.Stage = ""
	task.Error = nil
	task.CompletedAt = nil
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Metadata == nil {
		task.Metadata = make(map[string]interface{})
	}

	q.mu.Lock()
	if _, exists := q.tasks[task.ID]; exists {
		q.mu.Unlock()
		return ProcessingTask{}, errors.Wrap(ErrDuplicateTask, task.ID)
	}
	stored := task.clone()
	q.tasks[stored.ID] = &stored
	q.order = append(q.order, stored.ID)
	q.pending = append(q.pending, stored.ID)
	queueLength.Set(float64(len(q.pending)))
	q.notifyLocked(stored.clone())
	q.mu.Unlock()

	q.signal()
	return stored.clone(), nil
}

// Pause stops dispatching pending tasks. Tasks already processing run
// on undisturbed.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	queuePaused.Set(1)
	q.logger.Info("Queue dispatch paused")
}

// Start resumes dispatching after a Pause
func (q *Queue) Start() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	queuePaused.Set(0)
	q.signal()
	q.logger.Info("Queue dispatch resumed")
}

// Cancel forces a processing task to failed with reason cancelled and
// signals its handler context. Pending and terminal tasks cannot be
// cancelled. Once cancelled, no further progress events are delivered
// for the task id.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return errors.Wrap(ErrTaskNotFound, id)
	}
	if t.Status != StatusProcessing {
		q.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "cancel %s task %s", t.Status, id)
	}
	now := time.Now()
	t.Status = StatusFailed
	t.Stage = StageCancelled
	t.Progress = 0
	t.Error = &TaskError{Reason: ReasonCancelled, Message: "task cancelled"}
	t.CompletedAt = &now
	cancel := q.cancels[id]
	delete(q.cancels, id)
	q.notifyLocked(t.clone())
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.logger.WithField("task_id", id).Info("Task cancelled")
	return nil
}

// Retry re-enqueues a failed task at the back of the queue, resetting
// progress to zero. Only failed tasks, cancelled ones included, can be
// retried.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return errors.Wrap(ErrTaskNotFound, id)
	}
	if t.Status != StatusFailed {
		q.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "retry %s task %s", t.Status, id)
	}
	t.Status = StatusPending
	t.Progress = 0
	t.Stage = ""
	t.Error = nil
	t.CompletedAt = nil
	q.pending = append(q.pending, id)
	queueLength.Set(float64(len(q.pending)))
	q.notifyLocked(t.clone())
	q.mu.Unlock()

	q.signal()
	q.logger.WithField("task_id", id).Info("Task requeued for retry")
	return nil
}

// Clear drops completed and failed tasks from history and reports how
// many were removed. Pending and processing tasks are never touched.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	kept := q.order[:0]
	for _, id := range q.order {
		if t := q.tasks[id]; t != nil && t.Terminal() {
			delete(q.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}

// Subscribe registers fn for task snapshots and returns a token for
// Unsubscribe
func (q *Queue) Subscribe(fn Subscriber) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSub++
	q.subs[q.nextSub] = fn
	return q.nextSub
}

// Unsubscribe removes a subscriber
func (q *Queue) Unsubscribe(token int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.subs, token)
}

// Tasks returns snapshots of every known task in insertion order
func (q *Queue) Tasks() []ProcessingTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]ProcessingTask, 0, len(q.order))
	for _, id := range q.order {
		if t := q.tasks[id]; t != nil {
			out = append(out, t.clone())
		}
	}
	return out
}

// Get returns a snapshot of one task
func (q *Queue) Get(id string) (ProcessingTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return ProcessingTask{}, false
	}
	return t.clone(), true
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		task, taskCtx, ok := q.claim(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			case <-ticker.C:
			}
			continue
		}
		q.execute(taskCtx, task)
	}
}

// claim pops the oldest dispatchable task and moves it to processing
func (q *Queue) claim(runCtx context.Context) (ProcessingTask, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.paused && len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		queueLength.Set(float64(len(q.pending)))

		t := q.tasks[id]
		if t == nil || t.Status != StatusPending {
			continue
		}

		t.Status = StatusProcessing
		taskCtx, cancel := context.WithCancel(runCtx)
		q.cancels[id] = cancel
		q.notifyLocked(t.clone())
		return t.clone(), taskCtx, true
	}
	return ProcessingTask{}, nil, false
}

func (q *Queue) execute(ctx context.Context, task ProcessingTask) {
	log := q.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
	})
	log.Info("Task started")
	start := time.Now()

	var runErr error
	handler, ok := q.registry.Get(task.Type)
	if !ok {
		runErr = errors.Wrap(ErrNoHandler, string(task.Type))
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					runErr = errors.Errorf("task panicked: %v", r)
					log.WithField("panic", r).Error("Task handler panicked")
				}
			}()
			runErr = handler(ctx, task, func(stage string, percent float64) {
				q.reportProgress(task.ID, stage, percent)
			})
		}()
	}

	q.releaseCancel(task.ID)
	if runErr != nil {
		q.markFailed(task.ID, runErr)
	} else {
		q.markCompleted(task.ID)
	}

	status := string(StatusCompleted)
	if snap, found := q.Get(task.ID); found {
		status = string(snap.Status)
	}
	elapsed := time.Since(start)
	taskDuration.WithLabelValues(string(task.Type), status).Observe(elapsed.Seconds())
	tasksTotal.WithLabelValues(string(task.Type), status).Inc()

	log.WithFields(logrus.Fields{
		"status":   status,
		"duration": elapsed.String(),
	}).Info("Task finished")
}

// reportProgress applies a handler progress report. Reports for tasks
// no longer processing are dropped, and progress never decreases.
func (q *Queue) reportProgress(id, stage string, percent float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok || t.Status != StatusProcessing {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < t.Progress {
		percent = t.Progress
	}
	if percent == t.Progress && stage == t.Stage {
		return
	}
	t.Stage = stage
	t.Progress = percent
	q.notifyLocked(t.clone())
}

func (q *Queue) markCompleted(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok || t.Terminal() {
		return
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.Progress = 100
	t.CompletedAt = &now
	q.notifyLocked(t.clone())
}

func (q *Queue) markFailed(id string, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok || t.Terminal() {
		return
	}
	now := time.Now()
	t.Status = StatusFailed
	t.Stage = StageError
	t.Progress = 0
	t.Error = &TaskError{Reason: ReasonFailed, Message: cause.Error()}
	t.CompletedAt = &now
	q.notifyLocked(t.clone())
}

func (q *Queue) releaseCancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel, ok := q.cancels[id]; ok {
		delete(q.cancels, id)
		cancel()
	}
}

// notifyLocked appends a snapshot to the delivery buffer. Callers hold
// q.mu, which is what gives subscribers transition order.
func (q *Queue) notifyLocked(snapshot ProcessingTask) {
	if len(q.subs) == 0 {
		return
	}
	q.events = append(q.events, snapshot)
	select {
	case q.eventCh <- struct{}{}:
	default:
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatcher(ctx context.Context) {
	defer q.wg.Done()

	for {
		q.deliverEvents()
		select {
		case <-ctx.Done():
			q.deliverEvents()
			return
		case <-q.eventCh:
		}
	}
}

// deliverEvents drains the buffer and invokes subscribers outside the
// queue lock, one event at a time, in the order recorded
func (q *Queue) deliverEvents() {
	for {
		q.mu.Lock()
		if len(q.events) == 0 {
			q.mu.Unlock()
			return
		}
		batch := q.events
		q.events = nil

		tokens := make([]int, 0, len(q.subs))
		for token := range q.subs {
			tokens = append(tokens, token)
		}
		sort.Ints(tokens)
		subs := make([]Subscriber, len(tokens))
		for i, token := range tokens {
			subs[i] = q.subs[token]
		}
		q.mu.Unlock()

		for _, ev := range batch {
			for _, fn := range subs {
				fn(ev)
			}
		}
	}
}
