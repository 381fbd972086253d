package protocol

import (
	"testing"

	"pgregory.net/rapid"
)

// Feature: datagram-transport, Property 1: Read Buffer Size Invariant
// *For any* sequence of Get/Put calls, GetReadBuffer SHALL return a buffer of
// exactly ReadBufferSize bytes, large enough for any UDP datagram.
func TestReadBufferSizeInvariant_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		iterations := rapid.IntRange(1, 20).Draw(t, "iterations")

		for i := 0; i < iterations; i++ {
			buf := GetReadBuffer()
			if buf == nil {
				t.Fatal("GetReadBuffer returned nil")
			}
			if len(*buf) != ReadBufferSize {
				t.Fatalf("iteration %d: buffer length %d, expected %d", i, len(*buf), ReadBufferSize)
			}

			// Simulate a read that reslices and dirties the buffer.
			used := rapid.IntRange(0, ReadBufferSize).Draw(t, "used")
			for j := 0; j < used; j += 4096 {
				(*buf)[j] = 0xFF
			}
			PutReadBuffer(buf)
		}
	})
}

// Feature: datagram-transport, Property 2: Foreign Buffers Are Rejected
// *For any* buffer whose length differs from ReadBufferSize, PutReadBuffer SHALL
// discard it so the pool never hands out a short buffer.
func TestPutReadBuffer_RejectsWrongSize_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(0, ReadBufferSize-1).Draw(t, "size")
		foreign := make([]byte, size)
		PutReadBuffer(&foreign)

		for i := 0; i < 4; i++ {
			buf := GetReadBuffer()
			if len(*buf) != ReadBufferSize {
				t.Fatalf("pool returned a %d byte buffer", len(*buf))
			}
			PutReadBuffer(buf)
		}
	})
}

func TestPutReadBuffer_Nil(t *testing.T) {
	PutReadBuffer(nil)
}

func TestReadBuffer_FitsLargestDatagram(t *testing.T) {
	if ReadBufferSize < MaxDatagramSize {
		t.Fatalf("read buffer %d smaller than datagram ceiling %d", ReadBufferSize, MaxDatagramSize)
	}
}
