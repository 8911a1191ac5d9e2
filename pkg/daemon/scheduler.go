package daemon

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	// upcomingLead is how far ahead of the scheduled preheat the
	// OnUpcoming notification fires, giving the operator time to postpone
	// or skip.
	upcomingLead = 5 * time.Minute

	preCheckMaxTimes = 30
	preCheckInterval = 10 * time.Second
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler fires the preheat task on a cron schedule. PreCheck gates the
// task: while it fails (machine busy, probes invalid) the run is retried
// for a bounded window, then this occurrence is dropped.
type Scheduler struct {
	OnUpcoming NotifyFunc
	OnError    NotifyFunc
	Task       TaskFunc
	PreCheck   TaskFunc

	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	nextRun  time.Time
	running  bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

type controlKind int

const (
	ctrlRecalculate controlKind = iota // schedule replaced
	ctrlPostpone                       // next run moved later
	ctrlSkip                           // next run dropped
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(task, preCheck TaskFunc, onUpcoming, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}
	return &Scheduler{
		OnUpcoming: onUpcoming,
		OnError:    onError,
		Task:       task,
		PreCheck:   preCheck,
		parser:     cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh:  make(chan controlMsg, 4),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.run()
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

// Schedule replaces the cron expression. An empty expression clears the
// schedule.
func (s *Scheduler) Schedule(cronExpr string) error {
	if cronExpr == "" {
		s.mu.Lock()
		running := s.running
		s.schedule = nil
		s.nextRun = time.Time{}
		s.mu.Unlock()
		if running {
			s.trySendControl(ctrlRecalculate, cron.Schedule(nil))
		}
		return nil
	}

	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return pkgerrors.Wrapf(err, "bad cron expression %q", cronExpr)
	}

	s.mu.Lock()
	running := s.running
	if !running {
		s.schedule = sh
		s.nextRun = sh.Next(time.Now())
	}
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Postpone moves the next run later by d, but never past the occurrence
// after it.
func (s *Scheduler) Postpone(d time.Duration) error {
	if d <= 0 {
		return pkgerrors.New("postpone duration must be positive")
	}

	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() || !s.running {
		s.mu.Unlock()
		return pkgerrors.New("no active schedule to postpone")
	}
	orig := s.nextRun
	following := s.schedule.Next(orig).Truncate(time.Second)
	s.mu.Unlock()

	pp := orig.Add(d).Truncate(time.Second)
	if pp.Compare(following) >= 0 {
		return pkgerrors.New("postpone duration too long")
	}

	s.trySendControl(ctrlPostpone, pp)
	return nil
}

// Skip drops the next scheduled run.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return pkgerrors.New("no active schedule to skip")
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlSkip, nil)
	}
	return nil
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun, s.running
}

func (s *Scheduler) run() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		leading := true
		attempts := 0
		var precheckErr error

		schedule, nextRun := s.state()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun) - upcomingLead
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		for {
			select {
			case <-timer.C:
				if schedule == nil || nextRun.IsZero() {
					break
				}

				if leading {
					logrus.Debugf("upcoming scheduled preheat at %s", nextRun.Format(time.DateTime))
					leading = false
					runWait := time.Until(nextRun)
					if runWait < 0 {
						runWait = 0
					}
					timer.Reset(runWait)
					s.notify(nextRun)
					continue
				}

				if s.PreCheck != nil {
					if err := s.PreCheck(); err != nil {
						if precheckErr == nil || err.Error() != precheckErr.Error() {
							precheckErr = err
							s.fail(pkgerrors.Wrap(err, "precheck failed"))
						}

						attempts++
						if attempts <= preCheckMaxTimes {
							logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempts, preCheckMaxTimes, err, preCheckInterval)
							timer.Reset(preCheckInterval)
							continue
						}

						timer.Stop()
						s.advance()
						break
					}
				}

				timer.Stop()
				logrus.Infof("running scheduled preheat (was due %s)", nextRun.Format(time.DateTime))
				go func() {
					if err := s.Task(); err != nil {
						s.fail(pkgerrors.Wrap(err, "scheduled preheat failed"))
					}
				}()
				s.advance()
			case <-s.stopCh:
				timer.Stop()
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				return
			case msg := <-s.controlCh:
				logrus.WithFields(logrus.Fields{"kind": msg.kind, "data": msg.data}).
					Debug("received control msg")

				switch msg.kind {
				case ctrlRecalculate:
					timer.Stop()
					sh, _ := msg.data.(cron.Schedule)
					s.mu.Lock()
					s.schedule = sh
					if sh != nil {
						s.nextRun = sh.Next(time.Now())
					} else {
						s.nextRun = time.Time{}
					}
					s.mu.Unlock()
				case ctrlPostpone: // only moves the current occurrence
					pp := msg.data.(time.Time)
					timer.Reset(time.Until(pp))
					continue
				case ctrlSkip:
					timer.Stop()
				}
			}

			break
		}
	}
}

func (s *Scheduler) state() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(s.nextRun)
}

func (s *Scheduler) notify(runAt time.Time) {
	if s.OnUpcoming == nil {
		return
	}
	go s.OnUpcoming(runAt)
}

func (s *Scheduler) fail(err error) {
	if s.OnError == nil {
		return
	}
	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
