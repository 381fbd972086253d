package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage_Tagged(t *testing.T) {
	data, err := EncodeMessage(&QueryReceivedImages{Username: "bob"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"QueryReceivedImages":{"username":"bob"}}`, string(data))

	data, err = EncodeMessage(&EncryptionRequest{
		RequestID:      "r1",
		ClientUsername: "alice",
		ImageData:      []byte{1, 2, 3},
		Usernames:      []string{"alice", "bob"},
		Quota:          5,
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"EncryptionRequest":{"request_id":"r1","client_username":"alice","image_data":"AQID","usernames":["alice","bob"],"quota":5}}`,
		string(data))
}

func TestDecodeMessage_AllVariants(t *testing.T) {
	views := uint32(2)
	msgs := []Message{
		&EncryptionRequest{RequestID: "r1", ClientUsername: "alice", ImageData: []byte("png"), Usernames: []string{"bob"}, Quota: 3},
		&EncryptionResponse{RequestID: "r1", EncryptedImage: []byte("enc"), Success: true},
		&DecryptionRequest{RequestID: "r2", EncryptedImage: []byte("enc")},
		&DecryptionResponse{RequestID: "r2", DecryptedImage: []byte("png"), Usernames: []string{"bob"}, Quota: 3, Success: true},
		&SendImage{FromUsername: "alice", ToUsernames: []string{"bob", "carol"}, EncryptedImage: []byte("enc"), MaxViews: 2, ImageID: "img"},
		&SendImageResponse{Success: true, ImageID: "img"},
		&QueryReceivedImages{Username: "bob"},
		&QueryReceivedImagesResponse{Images: []ReceivedImageInfo{{ImageID: "img", FromUsername: "alice", RemainingViews: 2, Timestamp: 1700000000}}},
		&ViewImage{Username: "bob", ImageID: "img"},
		&ViewImageResponse{Success: true, ImageData: []byte("png"), RemainingViews: &views},
		&ErrorResponse{RequestID: "r9", Error: "boom"},
	}

	for _, msg := range msgs {
		t.Run(msg.Tag(), func(t *testing.T) {
			data, err := EncodeMessage(msg)
			require.NoError(t, err)
			got, err := DecodeMessage(data)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestDecodeMessage_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"not-json", `{{`, ErrMalformedMessage},
		{"no-tag", `{}`, ErrMalformedMessage},
		{"two-tags", `{"ViewImage":{},"QueryReceivedImages":{}}`, ErrMalformedMessage},
		{"unknown", `{"Election":{"from_node":1}}`, ErrUnknownMessage},
		{"wrong-shape", `{"ViewImage":{"username":7}}`, ErrMalformedMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tc.data))
			assert.True(t, errors.Is(err, tc.want), "expected %v, got %v", tc.want, err)
		})
	}
}

func TestEncodeMessage_Nil(t *testing.T) {
	_, err := EncodeMessage(nil)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}
