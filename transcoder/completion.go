package transcoder

import "sync"

// Completion is the single-settlement result of an asynchronous transform.
// Exactly one of success or failure is recorded; later settle calls are ignored.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// settle records the outcome. It reports whether this call won.
func (c *Completion) settle(err error) bool {
	won := false
	c.once.Do(func() {
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

// Err blocks until the completion settles and returns the recorded error.
func (c *Completion) Err() error {
	<-c.done
	return c.err
}
