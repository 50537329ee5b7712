package p2p

import (
	"go.uber.org/zap"

	"routing-node/internal/types"
)

func (n *Node) malformed(reason string, ep types.Endpoint, err error) {
	n.metrics.IncFrame(FrameMalformed)
	n.drop(reason, ep, err)
}

// drop logs a message or event the node ignores. Drops are routine on an
// open network, so they stay at debug level.
func (n *Node) drop(reason string, ep types.Endpoint, err error) {
	if ce := n.log.Check(zap.DebugLevel, "dropped"); ce != nil {
		fields := []zap.Field{zap.String("reason", reason), zap.Stringer("endpoint", ep)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		ce.Write(fields...)
	}
}
