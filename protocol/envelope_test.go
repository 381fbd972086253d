package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEnvelope_WireForm(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		want string
	}{
		{"single", &SinglePacket{Data: []byte("hi")}, `{"SinglePacket":"aGk="}`},
		{"single-empty", &SinglePacket{}, `{"SinglePacket":""}`},
		{
			"multi",
			&MultiPacket{ChunkID: "c1", ChunkIndex: 1, TotalChunks: 3, Data: []byte{0xFF, 0x00}},
			`{"MultiPacket":{"chunk_id":"c1","chunk_index":1,"total_chunks":3,"data":"/wA="}}`,
		},
		{
			"retransmit",
			&RetransmitRequest{ChunkID: "c1", MissingIndices: []uint32{2, 5}},
			`{"RetransmitRequest":{"chunk_id":"c1","missing_indices":[2,5]}}`,
		},
		{
			"retransmit-empty",
			&RetransmitRequest{ChunkID: "c1"},
			`{"RetransmitRequest":{"chunk_id":"c1","missing_indices":[]}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalEnvelope(tc.env)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestUnmarshalEnvelope_Variants(t *testing.T) {
	env, err := UnmarshalEnvelope([]byte(`{"SinglePacket":"aGk="}`))
	require.NoError(t, err)
	sp, ok := env.(*SinglePacket)
	require.True(t, ok, "expected *SinglePacket, got %T", env)
	assert.Equal(t, []byte("hi"), sp.Data)

	env, err = UnmarshalEnvelope([]byte(`{"MultiPacket":{"chunk_id":"c1","chunk_index":2,"total_chunks":3,"data":"/wA="}}`))
	require.NoError(t, err)
	assert.Equal(t, &MultiPacket{ChunkID: "c1", ChunkIndex: 2, TotalChunks: 3, Data: []byte{0xFF, 0x00}}, env)

	env, err = UnmarshalEnvelope([]byte(`{"RetransmitRequest":{"chunk_id":"c1","missing_indices":[2,5]}}`))
	require.NoError(t, err)
	assert.Equal(t, &RetransmitRequest{ChunkID: "c1", MissingIndices: []uint32{2, 5}}, env)
}

func TestUnmarshalEnvelope_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"not-json", `garbage`, ErrMalformedEnvelope},
		{"empty-object", `{}`, ErrMalformedEnvelope},
		{"two-tags", `{"SinglePacket":"","RetransmitRequest":{"chunk_id":"x","missing_indices":[]}}`, ErrMalformedEnvelope},
		{"unknown-tag", `{"Heartbeat":{}}`, ErrUnknownEnvelope},
		{"bad-base64", `{"SinglePacket":"***"}`, ErrMalformedEnvelope},
		{"empty-chunk-id", `{"MultiPacket":{"chunk_id":"","chunk_index":0,"total_chunks":1,"data":""}}`, ErrMalformedEnvelope},
		{"index-past-total", `{"MultiPacket":{"chunk_id":"c","chunk_index":3,"total_chunks":3,"data":""}}`, ErrInvalidChunkIndex},
		{"zero-total", `{"MultiPacket":{"chunk_id":"c","chunk_index":0,"total_chunks":0,"data":""}}`, ErrInvalidChunkIndex},
		{"retransmit-no-id", `{"RetransmitRequest":{"missing_indices":[1]}}`, ErrMalformedEnvelope},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalEnvelope([]byte(tc.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "expected %v, got %v", tc.want, err)
		})
	}
}
