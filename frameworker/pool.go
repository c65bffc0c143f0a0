package frameworker

import "github.com/xtls/segflow/telemetry"

// Dispatcher fans frame jobs out to a backend. The CPU pool below is
// the default implementation; a GPU-backed pool for segments above a
// size threshold can implement the same interface as a drop-in
// replacement. No GPU backend ships in this module.
type Dispatcher interface {
	Encrypt(job EncryptJob)
	Decrypt(job DecryptJob)
	Close()
}

// EncryptJob asks a pool worker to seal one frame and deliver the
// result on Result.
type EncryptJob struct {
	Worker       *Worker
	Plaintext    []byte
	SegmentIndex uint64
	FrameIndex   uint32
	FrameType    uint16
	Result       chan<- EncryptResult
}

// EncryptResult carries one sealed frame back to its segment worker.
type EncryptResult struct {
	FrameIndex uint32
	Wire       []byte
	Err        error
}

// DecryptJob asks a pool worker to open one frame view and deliver the
// result on Result.
type DecryptJob struct {
	Worker    *Worker
	FrameView []byte
	Result    chan<- DecryptResult
}

// DecryptResult carries one opened frame back to its segment worker.
type DecryptResult struct {
	Frame DecryptedFrame
	Err   error
}

// Pool is a bounded, fixed-size CPU worker pool shared across segments;
// the segment worker is the sole source of ordering, so jobs may
// complete in any order.
type Pool struct {
	encryptCh chan EncryptJob
	decryptCh chan DecryptJob
	done      chan struct{}
	counters  *telemetry.Counters
}

// NewPool starts workerCount goroutines reading from a channel of
// capacity workerCount*4, enough headroom that a burst of segment
// dispatches doesn't stall on a full channel.
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	cap := workerCount * 4
	p := &Pool{
		encryptCh: make(chan EncryptJob, cap),
		decryptCh: make(chan DecryptJob, cap),
		done:      make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		go p.encryptLoop()
		go p.decryptLoop()
	}
	return p
}

// SetCounters attaches the telemetry sink this pool reports sealed and
// opened frame counts to. Safe to call once, before the pool is handed
// any jobs; nil leaves the pool counting nothing.
func (p *Pool) SetCounters(c *telemetry.Counters) {
	p.counters = c
}

func (p *Pool) encryptLoop() {
	for {
		select {
		case job, ok := <-p.encryptCh:
			if !ok {
				return
			}
			wireBytes, err := job.Worker.EncryptFrame(job.Plaintext, job.SegmentIndex, job.FrameIndex, job.FrameType)
			if err == nil && p.counters != nil {
				p.counters.AddFramesSealed(1)
			}
			job.Result <- EncryptResult{FrameIndex: job.FrameIndex, Wire: wireBytes, Err: err}
		case <-p.done:
			return
		}
	}
}

func (p *Pool) decryptLoop() {
	for {
		select {
		case job, ok := <-p.decryptCh:
			if !ok {
				return
			}
			frame, err := job.Worker.DecryptFrame(job.FrameView)
			if err == nil && p.counters != nil {
				p.counters.AddFramesOpened(1)
			}
			job.Result <- DecryptResult{Frame: frame, Err: err}
		case <-p.done:
			return
		}
	}
}

// Encrypt dispatches job onto the bounded encrypt channel, blocking
// while it is full.
func (p *Pool) Encrypt(job EncryptJob) { p.encryptCh <- job }

// Decrypt dispatches job onto the bounded decrypt channel, blocking
// while it is full.
func (p *Pool) Decrypt(job DecryptJob) { p.decryptCh <- job }

// Close stops all pool goroutines. Safe to call once; in-flight jobs
// already read from the channel still complete.
func (p *Pool) Close() {
	close(p.done)
}
