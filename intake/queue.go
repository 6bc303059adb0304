// Package intake admits new raw videos from a watched folder exactly once
// and hands them, in admission order, to a single consumer.
package intake

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
	"shorts-pipeline/metrics"
	"shorts-pipeline/types"
)

// Admission is handed to the consumer once the job record exists
type Admission struct {
	JobID string
	Path  string
}

// Validator is the probe a stable file must pass
type Validator interface {
	Valid(ctx context.Context, path string) error
}

// Creator persists the initial detected record
type Creator interface {
	Create(sourcePath string, platforms []string, narration string) (types.JobRecord, error)
}

type Queue struct {
	cfg       config.IntakeConfig
	validator Validator
	creator   Creator
	log       *zerolog.Logger

	exts     map[string]struct{}
	mu       sync.Mutex
	seen     map[string]struct{}
	inflight map[string]struct{}
	watching atomic.Bool
	resubmit chan Admission
}

func NewQueue(cfg config.IntakeConfig, validator Validator, creator Creator, logger *zerolog.Logger) *Queue {
	if logger == nil {
		logger = logging.Nop()
	}
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Queue{
		cfg:       cfg,
		validator: validator,
		creator:   creator,
		log:       logger,
		exts:      exts,
		seen:      make(map[string]struct{}),
		inflight:  make(map[string]struct{}),
		resubmit:  make(chan Admission, cfg.QueueSize),
	}
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Seed marks the sources of existing job records as seen so a restart
// does not admit them again
func (q *Queue) Seed(records []types.JobRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range records {
		q.seen[key(r.SourcePath)] = struct{}{}
	}
}

// Seen reports whether path was already admitted or rejected
func (q *Queue) Seen(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[key(path)]
	return ok
}

func (q *Queue) supported(path string) bool {
	_, ok := q.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// claim reserves path for a stability check. It returns false for paths that
// are seen, already being checked, or unsupported (the latter are recorded).
func (q *Queue) claim(path string) (bool, error) {
	k := key(path)
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.seen[k]; ok {
		return false, nil
	}
	if _, ok := q.inflight[k]; ok {
		return false, nil
	}
	if !q.supported(path) {
		q.seen[k] = struct{}{}
		return false, &Error{Kind: KindUnsupported, Path: path}
	}
	q.inflight[k] = struct{}{}
	return true, nil
}

func (q *Queue) settle(path string) {
	k := key(path)
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, k)
	q.seen[k] = struct{}{}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// waitStable polls the size until two consecutive samples match
func (q *Queue) waitStable(ctx context.Context, path string) error {
	size := func() (int64, error) {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
	vanished := func(err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Kind: KindVanished, Path: path, Err: err}
		}
		return &Error{Kind: KindInvalid, Path: path, Err: err}
	}

	prev, err := size()
	if err != nil {
		return vanished(err)
	}
	deadline := time.Now().Add(q.cfg.StabilityTimeout)
	for {
		if err := sleep(ctx, q.cfg.PollInterval); err != nil {
			return err
		}
		cur, err := size()
		if err != nil {
			return vanished(err)
		}
		if cur == prev {
			return nil
		}
		prev = cur
		if q.cfg.StabilityTimeout > 0 && time.Now().After(deadline) {
			return &Error{Kind: KindUnstable, Path: path}
		}
	}
}

// check runs the stability wait and the validity probe
func (q *Queue) check(ctx context.Context, path string) error {
	if err := q.waitStable(ctx, path); err != nil {
		return err
	}
	if err := q.validator.Valid(ctx, path); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindInvalid, Path: path, Err: err}
	}
	return nil
}

// admit creates the job record for a checked path
func (q *Queue) admit(path string) (Admission, error) {
	narration := readSidecar(path)
	rec, err := q.creator.Create(path, q.cfg.Platforms, narration)
	if err != nil {
		return Admission{}, &Error{Kind: KindCreate, Path: path, Err: err}
	}
	return Admission{JobID: rec.ID, Path: path}, nil
}

// readSidecar returns the contents of <stem>.txt next to the video, if any
func readSidecar(path string) string {
	txt := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	data, err := os.ReadFile(txt)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Offer runs the full admission rule for one path synchronously
func (q *Queue) Offer(ctx context.Context, path string) (Admission, error) {
	ok, err := q.claim(path)
	if err != nil {
		q.reject(err)
		return Admission{}, err
	}
	if !ok {
		return Admission{}, nil
	}
	return q.finish(ctx, path, q.check(ctx, path))
}

func (q *Queue) finish(ctx context.Context, path string, checkErr error) (Admission, error) {
	if checkErr != nil && ctx.Err() != nil {
		// interrupted, not rejected: leave the path unseen for the next run
		q.mu.Lock()
		delete(q.inflight, key(path))
		q.mu.Unlock()
		return Admission{}, ctx.Err()
	}
	q.settle(path)
	if checkErr != nil {
		q.reject(checkErr)
		return Admission{}, checkErr
	}
	a, err := q.admit(path)
	if err != nil {
		q.reject(err)
		return Admission{}, err
	}
	metrics.IncAdmitted()
	q.log.Info().Str("job", a.JobID).Str("path", path).Msg("admitted")
	return a, nil
}

func (q *Queue) reject(err error) {
	var ierr *Error
	if errors.As(err, &ierr) {
		metrics.IncRejected(string(ierr.Kind))
		ev := q.log.Warn()
		if ierr.Kind == KindUnsupported {
			ev = q.log.Debug()
		}
		ev.Err(ierr.Err).Str("kind", string(ierr.Kind)).Str("path", ierr.Path).Msg("candidate dropped")
		return
	}
	q.log.Warn().Err(err).Msg("candidate dropped")
}

// Resubmit queues an existing job again, for example one an operator reset
// to detected. It never blocks: a full buffer returns ErrQueueFull.
func (q *Queue) Resubmit(a Admission) error {
	if !q.watching.Load() {
		return ErrNotWatching
	}
	select {
	case q.resubmit <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

type checked struct {
	path string
	err  error
}

// Watch starts watching dir and returns the admission channel. The channel
// is closed when ctx is done. A queue watches at most once.
func (q *Queue) Watch(ctx context.Context, dir string) (<-chan Admission, error) {
	if !q.watching.CompareAndSwap(false, true) {
		return nil, ErrAlreadyWatching
	}
	w, err := NewWatcher(dir, q.log)
	if err != nil {
		q.watching.Store(false)
		return nil, err
	}

	candidates := make(chan string)
	go w.Run(ctx, candidates)

	out := make(chan Admission, q.cfg.QueueSize)
	go q.produce(ctx, candidates, out)
	q.log.Info().Str("dir", dir).Msg("watching for new videos")
	return out, nil
}

// produce is the single writer of out. Stability checks run concurrently;
// record creation and enqueueing happen here, one path at a time, and
// resubmitted jobs are forwarded in between.
func (q *Queue) produce(ctx context.Context, candidates <-chan string, out chan<- Admission) {
	var wg sync.WaitGroup
	ready := make(chan checked)
	defer func() {
		wg.Wait()
		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-candidates:
			if !ok {
				return
			}
			claimed, err := q.claim(path)
			if err != nil {
				q.reject(err)
				continue
			}
			if !claimed {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c := checked{path: path, err: q.check(ctx, path)}
				select {
				case ready <- c:
				case <-ctx.Done():
				}
			}()
		case c := <-ready:
			a, err := q.finish(ctx, c.path, c.err)
			if err != nil || a.JobID == "" {
				continue
			}
			select {
			case out <- a:
				metrics.SetQueueDepth(len(out))
			case <-ctx.Done():
				return
			}
		case a := <-q.resubmit:
			q.log.Info().Str("job", a.JobID).Msg("resubmitted")
			select {
			case out <- a:
				metrics.SetQueueDepth(len(out))
			case <-ctx.Done():
				return
			}
		}
	}
}

// Handler processes one admission to completion
type Handler func(ctx context.Context, a Admission) error

// Consume is the single consumer: one job at a time, in admission order.
// Cancellation stops dequeuing; the job in flight finishes on a context
// that is not cancelled with ctx.
func Consume(ctx context.Context, admissions <-chan Admission, handle Handler, logger *zerolog.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-admissions:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.SetQueueDepth(len(admissions))
			if err := handle(context.WithoutCancel(ctx), a); err != nil {
				logger.Error().Err(err).Str("job", a.JobID).Msg("job handler failed")
			}
		}
	}
}
