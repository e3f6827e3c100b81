package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	ID() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs cron jobs in their own goroutines. A job whose previous run has
// not finished is skipped for that tick.
type TaskExecutor struct {
	cron     *cron.Cron
	cronJobs []CronJob
	running  mapset.Set[string]
	mu       sync.Mutex
}

func NewTaskExecutor(cronJobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:     cron.New(),
		cronJobs: cronJobs,
		running:  mapset.NewThreadUnsafeSet[string](),
	}
}

// Start schedules every job and starts the cron.
func (t *TaskExecutor) Start() error {
	for _, job := range t.cronJobs {
		job := job
		err := t.cron.AddFunc(job.Schedule(), func() {
			t.trigger(job)
		})
		if err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.ID(), err)
			return err
		}
		logrus.Infof("scheduled task %s: %s", job.ID(), job.Schedule())
	}

	t.cron.Start()
	return nil
}

// trigger runs job unless it is already running and reports whether it ran.
func (t *TaskExecutor) trigger(job Job) bool {
	t.mu.Lock()
	if t.running.Contains(job.ID()) {
		t.mu.Unlock()
		logrus.Warnf("task %s is still running, skipping", job.ID())
		return false
	}
	t.running.Add(job.ID())
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.running.Remove(job.ID())
	}()

	job.Run()
	return true
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}
