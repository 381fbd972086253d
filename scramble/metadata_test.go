package scramble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Marshal(t *testing.T) {
	data, err := Metadata{Usernames: []string{"alice", "bob"}, Quota: 5}.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"usernames":["alice","bob"],"quota":5}`, string(data))

	data, err = Metadata{}.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"usernames":[],"quota":0}`, string(data))
}

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata([]byte(`{"usernames":["alice","bob"],"quota":5}`))
	require.NoError(t, err)
	assert.Equal(t, Metadata{Usernames: []string{"alice", "bob"}, Quota: 5}, md)
}

func TestParseMetadata_Malformed(t *testing.T) {
	inputs := []string{
		"not json",
		`{"usernames":["alice"]}`,
		`{"quota":3}`,
		`{"usernames":"alice","quota":3}`,
		`{"usernames":[],"quota":-1}`,
		"\xff\xfe",
	}
	for _, in := range inputs {
		_, err := ParseMetadata([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedMetadata, "input %q", in)
		assert.ErrorIs(t, err, ErrCorruptMetadata, "input %q", in)
		assert.NotErrorIs(t, err, ErrInvalidMetadataLength, "input %q", in)
	}
}

func TestMetadata_Authorized(t *testing.T) {
	md := Metadata{Usernames: []string{"alice", "bob"}, Quota: 3}
	assert.True(t, md.Authorized("alice"))
	assert.True(t, md.Authorized("bob"))
	assert.False(t, md.Authorized("charlie"))
}

func TestMetadata_DecrementQuota(t *testing.T) {
	md := Metadata{Usernames: []string{"alice"}, Quota: 2}

	assert.True(t, md.DecrementQuota())
	assert.Equal(t, uint32(1), md.Quota)
	assert.True(t, md.DecrementQuota())
	assert.Equal(t, uint32(0), md.Quota)
	assert.False(t, md.DecrementQuota())
	assert.Equal(t, uint32(0), md.Quota)
}
