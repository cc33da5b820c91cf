// Package gossip implements GossipService: the state machine that
// turns PeerService's raw connection events into chain mutations and
// flooding, and turns chain mutations into outbound messages.
// GossipService is the sole owner of the BlockForest and is therefore
// the only place forest.Forest.AddBlock/AddTransaction are called —
// see the lock-ordering note in SPEC_FULL §5.
package gossip

import (
	"time"

	"github.com/babencoin/babencoin/common"
	"github.com/babencoin/babencoin/config"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/forest"
	"github.com/babencoin/babencoin/log"
	"github.com/babencoin/babencoin/node/mining"
	"github.com/babencoin/babencoin/node/peer"
)

var logger = log.NewModuleLogger(log.GossipService)

// Service is the single consumer of peer.Event and the single producer
// of peer.Command and mining.Info.
type Service struct {
	forest *forest.Forest
	config config.GossipServiceConfig

	peerEvents   <-chan peer.Event
	peerCommands chan<- peer.Command
	minedBlocks  <-chan data.VerifiedBlock
	miningInfo   chan<- mining.Info

	sessions        map[peer.SessionID]*sessionKnowledge
	pendingRequests map[common.Hash]peer.SessionID
}

// New constructs a Service bound to forest, which it will mutate
// exclusively, and the four channels that connect it to PeerService
// and MiningService.
func New(
	f *forest.Forest,
	cfg config.GossipServiceConfig,
	peerEvents <-chan peer.Event,
	peerCommands chan<- peer.Command,
	minedBlocks <-chan data.VerifiedBlock,
	miningInfo chan<- mining.Info,
) *Service {
	return &Service{
		forest:          f,
		config:          cfg,
		peerEvents:      peerEvents,
		peerCommands:    peerCommands,
		minedBlocks:     minedBlocks,
		miningInfo:      miningInfo,
		sessions:        make(map[peer.SessionID]*sessionKnowledge),
		pendingRequests: make(map[common.Hash]peer.SessionID),
	}
}

// Run drives the event loop forever. Call it from its own goroutine;
// GossipService has no other entry point, matching the spec's
// single-writer ownership of the forest.
func (s *Service) Run() {
	var tick <-chan time.Time
	if d := s.config.EagerRequestsInterval.Duration; d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev := <-s.peerEvents:
			s.handleEvent(ev)
		case b := <-s.minedBlocks:
			s.handleMinedBlock(b)
		case <-tick:
			s.retryPendingRequests()
		}
	}
}

func (s *Service) handleEvent(ev peer.Event) {
	switch ev.Kind {
	case peer.EventConnected:
		s.onConnected(ev.SessionID)
	case peer.EventDisconnected:
		s.onDisconnected(ev.SessionID, ev.Reason)
	case peer.EventNewMessage:
		s.onNewMessage(ev.SessionID, ev.Message)
	}
}

func (s *Service) onConnected(id peer.SessionID) {
	known := newSessionKnowledge()
	s.sessions[id] = known

	head := s.forest.Head()
	known.mark(head.Hash())
	s.peerCommands <- peer.Command{SessionID: id, Kind: peer.CommandSendMessage, Message: data.NewBlockMessage(head)}
	for _, tx := range s.forest.PendingTransactions() {
		known.mark(tx.Hash())
		s.peerCommands <- peer.Command{SessionID: id, Kind: peer.CommandSendMessage, Message: data.NewTransactionMessage(tx)}
	}
}

func (s *Service) onDisconnected(id peer.SessionID, reason string) {
	delete(s.sessions, id)
	logger.Info("peer disconnected", "session", id, "reason", reason)
	// Idempotent: PeerService may already have torn the socket down
	// itself (that is exactly what produced this event); Drop on an
	// already-closed session is a harmless no-op there.
	s.peerCommands <- peer.Command{SessionID: id, Kind: peer.CommandDrop}
}

func (s *Service) onNewMessage(from peer.SessionID, msg data.VerifiedPeerMessage) {
	switch msg.Kind {
	case data.KindBlock:
		s.handleBlock(from, msg.Block)
	case data.KindTransaction:
		s.handleTransaction(from, msg.Transaction)
	case data.KindRequest:
		s.handleRequest(from, msg.RequestHash)
	}
}

func (s *Service) handleBlock(from peer.SessionID, vb data.VerifiedBlock) {
	hash := vb.Hash()
	s.markKnown(from, hash)

	if _, ok := s.forest.FindBlock(vb.PrevHash()); !ok {
		s.requestParent(from, vb.PrevHash())
		return
	}
	if err := s.forest.AddBlock(vb); err != nil {
		logger.Debug("rejected block from peer", "session", from, "hash", hash, "err", err)
		return
	}
	delete(s.pendingRequests, hash)
	s.broadcast(hash, data.NewBlockMessage(vb), &from)
	s.publishMiningInfo()
}

func (s *Service) handleTransaction(from peer.SessionID, vt data.VerifiedTransaction) {
	hash := vt.Hash()
	s.markKnown(from, hash)

	if err := s.forest.AddTransaction(vt); err != nil {
		logger.Debug("rejected transaction from peer", "session", from, "hash", hash, "err", err)
		return
	}
	s.broadcast(hash, data.NewTransactionMessage(vt), &from)
	s.publishMiningInfo()
}

func (s *Service) handleRequest(from peer.SessionID, hash common.Hash) {
	vb, ok := s.forest.FindBlock(hash)
	if !ok {
		return
	}
	s.markKnown(from, hash)
	for _, tx := range vb.Transactions() {
		s.markKnown(from, tx.Hash())
	}
	s.peerCommands <- peer.Command{SessionID: from, Kind: peer.CommandSendMessage, Message: data.NewBlockMessage(vb)}
}

// handleMinedBlock integrates a block MiningService just found and
// forwards it to every peer through this same loop — unlike the
// original node, which let the mining worker call into gossip state
// directly from its own goroutine (see REDESIGN FLAG (a) in
// SPEC_FULL.md), babencoin serializes mined blocks through the same
// single-writer path as every peer-sourced block.
func (s *Service) handleMinedBlock(vb data.VerifiedBlock) {
	hash := vb.Hash()
	if err := s.forest.AddBlock(vb); err != nil {
		logger.Warn("mined block rejected, chain moved under us", "hash", hash, "err", err)
		return
	}
	s.broadcast(hash, data.NewBlockMessage(vb), nil)
	s.publishMiningInfo()
}

// requestParent asks the peer that handed us an orphan for its
// missing parent, and remembers the request so the eager-retry ticker
// can chase it if the peer never answers.
func (s *Service) requestParent(from peer.SessionID, parentHash common.Hash) {
	s.pendingRequests[parentHash] = from
	s.peerCommands <- peer.Command{SessionID: from, Kind: peer.CommandSendMessage, Message: data.NewRequestMessage(parentHash)}
}

func (s *Service) retryPendingRequests() {
	for hash, sess := range s.pendingRequests {
		if _, ok := s.forest.FindBlock(hash); ok {
			delete(s.pendingRequests, hash)
			continue
		}
		if _, ok := s.sessions[sess]; !ok {
			delete(s.pendingRequests, hash)
			continue
		}
		s.peerCommands <- peer.Command{SessionID: sess, Kind: peer.CommandSendMessage, Message: data.NewRequestMessage(hash)}
	}
}

// broadcast sends msg to every connected session except exclude
// (typically the one we received it from, or nil for a locally mined
// block) that has not already seen hash, and marks it seen for each
// recipient so it is never sent to that session twice.
func (s *Service) broadcast(hash common.Hash, msg data.VerifiedPeerMessage, exclude *peer.SessionID) {
	var targets []peer.SessionID
	for id, known := range s.sessions {
		if exclude != nil && id == *exclude {
			continue
		}
		if known.has(hash) {
			continue
		}
		known.mark(hash)
		targets = append(targets, id)
	}
	for _, id := range targets {
		s.peerCommands <- peer.Command{SessionID: id, Kind: peer.CommandSendMessage, Message: msg}
	}
}

func (s *Service) markKnown(id peer.SessionID, hash common.Hash) {
	if k, ok := s.sessions[id]; ok {
		k.mark(hash)
	}
}

// publishMiningInfo hands MiningService the latest head and pending
// set. It never blocks: MiningService only ever needs the freshest
// Info, so a slow consumer simply loses a stale intermediate update
// rather than stalling the gossip loop.
func (s *Service) publishMiningInfo() {
	info := mining.Info{Head: s.forest.Head(), PendingTransactions: s.forest.PendingTransactions()}
	select {
	case s.miningInfo <- info:
	default:
	}
}
