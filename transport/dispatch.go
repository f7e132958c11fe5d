package transport

import (
	"github.com/luma/beacon/protocol"
	"github.com/luma/beacon/storage"
)

// Dispatch executes req against store and returns the reply for the client.
// Every request that parsed successfully can be executed, so there is no
// error return.
func Dispatch(store storage.Store, req protocol.Request) protocol.Value {
	switch c := req.(type) {
	case *protocol.PingRequest:
		return protocol.ReplyPong

	case *protocol.SetRequest:
		store.Set(c.Key, c.Value)
		return protocol.ReplyOk

	case *protocol.GetRequest:
		value, ok := store.Get(c.Key)
		if !ok {
			return protocol.NullBulk()
		}

		return protocol.BulkString(value)

	default:
		// Request is sealed, this only happens if a new request type is added
		// without teaching Dispatch about it.
		return protocol.Errorf("ERR unknown command '%s'", req.GetCommand())
	}
}
