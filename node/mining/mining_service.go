// Package mining implements MiningService: the nonce-search worker
// pool that turns the chain tip and pending transactions GossipService
// publishes into new, signed candidate blocks. It is grounded on the
// teacher's work package — an agent submit/preempt loop lifted from
// work.CpuAgent, generalized here to fan a single candidate out across
// a configurable number of search workers instead of one.
package mining

import (
	"crypto/ed25519"
	"math/rand"
	"runtime"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/babencoin/babencoin/common"
	"github.com/babencoin/babencoin/config"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/log"
)

var logger = log.NewModuleLogger(log.MiningService)

var metricBlocksMined = metrics.NewRegisteredCounter("miner/blocksmined", nil)

// Service owns the agent and the translation between mining.Info and
// candidate blocks. ThreadCount <= 0 means "use every core", the same
// convention rayon's ThreadPoolBuilder applies to num_threads(0) in the
// original node.
type Service struct {
	config config.MiningServiceConfig
	priv   ed25519.PrivateKey
	issuer common.WalletID

	info        <-chan Info
	minedBlocks chan<- data.VerifiedBlock
}

// New constructs a Service that signs every block it mines with priv.
func New(cfg config.MiningServiceConfig, priv ed25519.PrivateKey, info <-chan Info, minedBlocks chan<- data.VerifiedBlock) *Service {
	var issuer common.WalletID
	copy(issuer[:], priv.Public().(ed25519.PublicKey))
	return &Service{
		config:      cfg,
		priv:        priv,
		issuer:      issuer,
		info:        info,
		minedBlocks: minedBlocks,
	}
}

// Run drives the service forever. Call it from its own goroutine.
func (s *Service) Run() {
	threadCount := s.config.ThreadCount
	if threadCount <= 0 {
		threadCount = runtime.NumCPU()
	}

	found := make(chan data.Block, 1)
	a := newAgent(threadCount, s.priv, found)
	go a.start()

	logger.Info("mining enabled", "threads", threadCount, "issuer", s.issuer)

	for {
		select {
		case info := <-s.info:
			a.submit(s.buildCandidate(info))
		case block := <-found:
			s.handleFound(block)
		}
	}
}

// buildCandidate composes an unsigned, unnounced block extending
// info.Head: as many pending transactions as MaxTxPerBlock allows, in
// the order GossipService handed them over, plus a reward randomized
// up to data.MaxReward the way the original node's miner does, rather
// than always claiming the maximum.
func (s *Service) buildCandidate(info Info) data.Block {
	txs := info.PendingTransactions
	if s.config.MaxTxPerBlock > 0 && len(txs) > s.config.MaxTxPerBlock {
		txs = txs[:s.config.MaxTxPerBlock]
	}
	unverified := make([]data.Transaction, len(txs))
	for i, t := range txs {
		unverified[i] = t.Unverified()
	}

	return data.Block{
		Index:        info.Head.Index() + 1,
		Reward:       uint64(rand.Intn(data.MaxReward + 1)),
		Timestamp:    time.Now().UTC(),
		Issuer:       s.issuer,
		MaxHash:      s.config.TargetMaxHash,
		PrevHash:     info.Head.Hash(),
		Transactions: unverified,
	}
}

// handleFound verifies a block the agent just mined and, on success,
// forwards it to GossipService to integrate and broadcast. Rejection
// here is not expected in ordinary operation: Verified has no chain
// context, and the agent only reports a signed block whose hash is
// within MaxHash. A block built on stale chain state passes here and
// is judged by Forest.AddBlock in GossipService.
func (s *Service) handleFound(b data.Block) {
	vb, err := b.Verified()
	if err != nil {
		logger.Warn("mined block failed self-verification", "err", err)
		return
	}
	metricBlocksMined.Inc(1)
	logger.Info("mined block", "index", vb.Index(), "hash", vb.Hash(), "reward", vb.Reward())
	s.minedBlocks <- vb
}
