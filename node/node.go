// Package node wires PeerService, GossipService and MiningService
// together into one running babencoin node, the way the teacher's
// node.Node assembles and starts its registered Services, generalized
// here to babencoin's fixed three-service shape instead of a dynamic
// registry.
package node

import (
	"github.com/babencoin/babencoin/config"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/forest"
	"github.com/babencoin/babencoin/log"
	"github.com/babencoin/babencoin/node/gossip"
	"github.com/babencoin/babencoin/node/mining"
	"github.com/babencoin/babencoin/node/peer"
)

var logger = log.NewModuleLogger(log.Common)

// channelBuffer sizes the peer event, peer command and mined-block
// channels. Peer events/commands can briefly burst under load; mined
// blocks are always consumed promptly, so a small buffer is enough to
// avoid a rendezvous stall between independent goroutines. The
// mining-info channel holds a single Info.
const channelBuffer = 64

// Node owns one Forest and the three services built on top of it.
type Node struct {
	forest *forest.Forest
	peer   *peer.Service
	gossip *gossip.Service
	mining *mining.Service
}

// New constructs a Node from cfg. It loads (or creates, for an
// ephemeral node) this node's signing key from cfg.DataDir.
func New(cfg config.Config) (*Node, error) {
	priv, err := loadOrCreateNodeKey(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	f := forest.New()

	peerEvents := make(chan peer.Event, channelBuffer)
	peerCommands := make(chan peer.Command, channelBuffer)
	minedBlocks := make(chan data.VerifiedBlock, channelBuffer)
	miningInfo := make(chan mining.Info, 1)

	peerSvc := peer.New(cfg.PeerService, peerEvents, peerCommands)
	gossipSvc := gossip.New(f, cfg.GossipService, peerEvents, peerCommands, minedBlocks, miningInfo)
	miningSvc := mining.New(cfg.MiningService, priv, miningInfo, minedBlocks)

	return &Node{
		forest: f,
		peer:   peerSvc,
		gossip: gossipSvc,
		mining: miningSvc,
	}, nil
}

// Run starts all three services and blocks forever, also on a node
// with no listen address, whose PeerService.Run returns after
// dialing. Nothing signals a coordinated shutdown beyond process exit
// (see cmd/babencoind, which handles SIGINT/SIGTERM one layer up).
func (n *Node) Run() {
	go n.gossip.Run()
	go n.mining.Run()
	logger.Info("babencoin node starting")
	n.peer.Run()
	select {}
}
