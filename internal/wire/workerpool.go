package wire

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

type workerFunc = func(t *tomb.Tomb, task any) error

// workerPool is the teacher's internal/worker.go WorkerPool unchanged in
// shape: a fixed-size pool of tomb-supervised goroutines pulling from a
// shared task channel.
type workerPool struct {
	n     int
	tasks chan any
}

func newWorkerPool(size int) workerPool {
	return workerPool{tasks: make(chan any, taskChanSize), n: size}
}

func (p *workerPool) addTask(task any) { p.tasks <- task }

func (p *workerPool) setup(t *tomb.Tomb, work workerFunc) {
	log.Info().Int("workers", p.n).Msg("order entry server starting worker pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error { return p.worker(t, work) })
	}
}

func (p *workerPool) worker(t *tomb.Tomb, work workerFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("order entry worker exiting")
				return err
			}
		}
	}
}
