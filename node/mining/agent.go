package mining

import (
	"crypto/ed25519"
	"sync"

	"github.com/rcrowley/go-metrics"

	"github.com/babencoin/babencoin/data"
)

var metricHashrate = metrics.NewRegisteredMeter("miner/hashrate", nil)

// agent runs a fixed-size pool of nonce-search workers and restarts
// them from scratch every time new work is submitted, the same
// submit-then-preempt shape as the teacher's CpuAgent: a single
// buffered work slot, and a quitCurrentOp channel closed to cancel
// whatever search is in flight before starting the next one.
type agent struct {
	threadCount int
	priv        ed25519.PrivateKey

	mu            sync.Mutex
	quitCurrentOp chan struct{}

	workCh chan data.Block
	found  chan<- data.Block
}

func newAgent(threadCount int, priv ed25519.PrivateKey, found chan<- data.Block) *agent {
	return &agent{
		threadCount: threadCount,
		priv:        priv,
		workCh:      make(chan data.Block, 1),
		found:       found,
	}
}

// start runs the agent's dispatch loop. Call once, from its own
// goroutine.
func (a *agent) start() {
	for candidate := range a.workCh {
		a.mu.Lock()
		if a.quitCurrentOp != nil {
			close(a.quitCurrentOp)
		}
		stop := make(chan struct{})
		a.quitCurrentOp = stop
		a.mu.Unlock()
		go a.mine(candidate, stop)
	}
}

// submit replaces whatever candidate the agent is currently searching
// for with a new one, preempting the in-flight search. It never
// blocks: a pending, not-yet-picked-up candidate is simply replaced,
// since only the newest head matters.
func (a *agent) submit(candidate data.Block) {
	select {
	case <-a.workCh:
	default:
	}
	a.workCh <- candidate
}

// mine fans a candidate out across threadCount workers, each searching
// a disjoint nonce residue class, and forwards the first signed block
// any of them finds. outerStop, closed by start() when newer work
// arrives, cancels every worker still running.
func (a *agent) mine(candidate data.Block, outerStop <-chan struct{}) {
	innerStop := make(chan struct{})
	var once sync.Once
	closeInner := func() { once.Do(func() { close(innerStop) }) }

	go func() {
		select {
		case <-outerStop:
			closeInner()
		case <-innerStop:
		}
	}()

	results := make(chan data.Block, a.threadCount)
	for i := 0; i < a.threadCount; i++ {
		go searchNonces(candidate, a.priv, uint64(i), uint64(a.threadCount), innerStop, results)
	}

	select {
	case block := <-results:
		closeInner()
		a.found <- block
	case <-innerStop:
	}
}

// searchNonces tries every nonce congruent to start modulo stride,
// signing and reporting the first one whose hash satisfies the
// candidate's declared MaxHash. It checks stop before every attempt so
// cancellation latency is at most one hash computation.
func searchNonces(candidate data.Block, priv ed25519.PrivateKey, start, stride uint64, stop <-chan struct{}, results chan<- data.Block) {
	nonce := start
	attempts := int64(0)
	for {
		select {
		case <-stop:
			return
		default:
		}

		candidate.Nonce = nonce
		hash := candidate.Hash()
		attempts++
		if attempts%1024 == 0 {
			metricHashrate.Mark(attempts)
			attempts = 0
		}
		if !candidate.MaxHash.Less(hash) {
			metricHashrate.Mark(attempts)
			candidate.Sign(priv)
			select {
			case results <- candidate:
			case <-stop:
			}
			return
		}
		nonce += stride
	}
}
