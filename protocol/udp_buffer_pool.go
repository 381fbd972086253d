package protocol

import "sync"

// ReadBufferSize fits any UDP datagram.
const ReadBufferSize = 65535

var readPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufferSize)
		return &buf
	},
}

// GetReadBuffer returns a buffer of exactly ReadBufferSize bytes.
// Callers must call PutReadBuffer when done.
func GetReadBuffer() *[]byte {
	return readPool.Get().(*[]byte)
}

// PutReadBuffer returns a read buffer to the pool.
// If buf is nil or has incorrect size, it is silently discarded.
func PutReadBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != ReadBufferSize {
		return
	}
	readPool.Put(buf)
}
