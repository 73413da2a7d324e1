package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxQueued caps the backlog of one user; throttling normally keeps it short.
const maxQueued = 32

// dispatcher keeps one FIFO queue per user. A queue is drained by its own
// goroutine, which exits once the queue is empty, and at most cap(sem)
// updates are handled at a time across all users.
type dispatcher struct {
	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
	sem    chan struct{}
	wg     sync.WaitGroup
	handle func(tgbotapi.Update)
}

func newDispatcher(workers int, handle func(tgbotapi.Update)) *dispatcher {
	return &dispatcher{
		queues: make(map[int64][]tgbotapi.Update),
		sem:    make(chan struct{}, workers),
		handle: handle,
	}
}

// dispatch queues upd behind the user's earlier updates and never blocks.
// It reports false when the user's backlog is full and upd was dropped.
func (d *dispatcher) dispatch(userID int64, upd tgbotapi.Update) bool {
	d.mu.Lock()
	q, draining := d.queues[userID]
	if len(q) >= maxQueued {
		d.mu.Unlock()
		return false
	}
	d.queues[userID] = append(q, upd)
	if !draining {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if !draining {
		go d.drain(userID)
	}
	return true
}

func (d *dispatcher) drain(userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[userID]
		if len(q) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		upd := q[0]
		d.queues[userID] = q[1:]
		d.mu.Unlock()

		d.sem <- struct{}{}
		d.handle(upd)
		<-d.sem
	}
}

// wait blocks until every queued update has been handled.
func (d *dispatcher) wait() {
	d.wg.Wait()
}

// pending is the number of users with queued or running updates.
func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}
