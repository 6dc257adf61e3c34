// Package animator provides time-driven step animation.
//
// An [Animator] maps wall-clock time since its first update onto a discrete
// step index and calls back whenever that index changes. It does not count
// calls: a caller that misses ticks simply sees the index jump forward.
package animator

import "time"

// StepFunc is called with the new step index and the step count.
type StepFunc func(index, count int)

// Option configures an Animator.
type Option func(*Animator)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Animator) {
		a.now = now
	}
}

// Animator is a discrete-step ticker. It is not safe for concurrent use.
type Animator struct {
	steps  int
	step   time.Duration
	loop   bool
	onStep StepFunc
	now    func() time.Time

	started  bool
	start    time.Time
	index    int
	finished bool
}

// New creates an animator with steps intervals of duration step.
// A non-looping animator ends by firing the terminal index steps once.
func New(steps int, step time.Duration, loop bool, onStep StepFunc, opts ...Option) *Animator {
	if steps < 1 {
		steps = 1
	}
	if step <= 0 {
		step = time.Millisecond
	}
	if onStep == nil {
		onStep = func(int, int) {}
	}
	a := &Animator{
		steps:  steps,
		step:   step,
		loop:   loop,
		onStep: onStep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Update advances the animation and reports whether a step fired.
func (a *Animator) Update() bool {
	if !a.started {
		a.started = true
		a.start = a.now()
		a.index = 0
		a.onStep(0, a.steps)
		return true
	}

	raw := int(a.now().Sub(a.start) / a.step)
	if raw < 0 {
		raw = 0
	}
	if !a.loop && raw > a.steps {
		if a.finished {
			return false
		}
		a.finished = true
		a.onStep(a.steps, a.steps)
		return true
	}

	index := raw % a.steps
	if index > a.index || (a.loop && index != a.index) {
		a.index = index
		a.onStep(index, a.steps)
		return true
	}
	return false
}

// Reset re-arms the animator so the next Update fires step 0 again.
func (a *Animator) Reset() {
	a.started = false
	a.index = 0
	a.finished = false
}

// Index returns the last fired step index (terminal step excluded).
func (a *Animator) Index() int {
	return a.index
}

// Steps returns the number of steps.
func (a *Animator) Steps() int {
	return a.steps
}

// Finished reports whether a non-looping animator fired its terminal step.
func (a *Animator) Finished() bool {
	return a.finished
}
