package flate

import (
	"context"
	"sync"
)

// Result is the single message a background decode sends back.
type Result struct {
	Data []byte
	Err  error
}

type request struct {
	input []byte
	opts  Options
	done  chan Result
}

// Pool runs decodes on a fixed set of worker goroutines. A decode that has
// started always runs to completion; callers stop waiting by abandoning the
// result channel, which is buffered so the worker never blocks on it.
type Pool struct {
	queue chan *request
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPool starts workers goroutines. workers < 1 is treated as 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{queue: make(chan *request, workers*2)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for req := range p.queue {
				data, err := Decode(req.input, req.opts)
				req.done <- Result{Data: data, Err: err}
			}
		}()
	}
	return p
}

// Submit queues a decode. The input and dictionary are copied, so the caller
// may reuse its buffers as soon as Submit returns.
func (p *Pool) Submit(input []byte, opts Options) <-chan Result {
	req := &request{
		input: cloneBytes(input),
		opts:  Options{ExpectedSize: opts.ExpectedSize, Dictionary: cloneBytes(opts.Dictionary)},
		done:  make(chan Result, 1),
	}
	p.queue <- req
	return req.done
}

// Close stops accepting work and waits for queued decodes to finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// DecodeAsync runs Decode on its own goroutine.
func DecodeAsync(input []byte, opts Options) <-chan Result {
	done := make(chan Result, 1)
	input = cloneBytes(input)
	opts.Dictionary = cloneBytes(opts.Dictionary)
	go func() {
		data, err := Decode(input, opts)
		done <- Result{Data: data, Err: err}
	}()
	return done
}

// Await waits for a result or for ctx to end, whichever comes first.
func Await(ctx context.Context, ch <-chan Result) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Data, res.Err
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
