package broker

import (
	"bytes"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
)

// presenceHook logs lamp sessions on the embedded broker. Connection state
// in the registry is driven by the establish field the lamps publish, not
// by broker sessions; this hook exists for development visibility only.
type presenceHook struct {
	mochi.HookBase
	logger *logging.Logger
}

// ID returns the ID of the hook.
func (h *presenceHook) ID() string {
	return "presence"
}

// Provides indicates which hook methods this hook implements.
func (h *presenceHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnSessionEstablished,
		mochi.OnDisconnect,
	}, []byte{b})
}

// OnSessionEstablished is called when a client establishes a session.
func (h *presenceHook) OnSessionEstablished(cl *mochi.Client, _ packets.Packet) {
	h.logger.Debug("broker client connected", "client_id", cl.ID, "remote", cl.Net.Remote)
}

// OnDisconnect is called when a client disconnects for any reason.
func (h *presenceHook) OnDisconnect(cl *mochi.Client, err error, _ bool) {
	if err != nil {
		h.logger.Debug("broker client disconnected", "client_id", cl.ID, "error", err)
		return
	}
	h.logger.Debug("broker client disconnected", "client_id", cl.ID)
}
