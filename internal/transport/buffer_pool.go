package transport

import "sync"

// maxUDPMessageSize is large enough for any EDNS0-negotiated payload size
// in practice; RFC 6891 leaves the upper bound to the path MTU, but no
// resolver advertises anything close to the 65535-byte theoretical limit.
const maxUDPMessageSize = 65535

// bufferPool reuses receive buffers across Receive() calls so the hot path
// of a busy server does not allocate a fresh buffer for every datagram.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, maxUDPMessageSize)
		return &buf
	},
}

// GetBuffer returns a pointer to a pooled receive buffer. Callers must
// return it with PutBuffer, typically via defer immediately after Get.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. The buffer must not be used
// after this call.
func PutBuffer(bufPtr *[]byte) {
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}
	bufferPool.Put(bufPtr)
}
