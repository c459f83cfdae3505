// Package unit holds the tests that run whole parties together.
package unit

import (
	"go.dedis.ch/mpcsum/peer/impl"
)

var peerFac = impl.NewPeer
