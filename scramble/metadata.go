package scramble

import (
	"fmt"
	"slices"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata is the access-control record hidden inside an encrypted image.
// Username order is significant: it feeds the seed hash.
type Metadata struct {
	Usernames []string `json:"usernames"`
	Quota     uint32   `json:"quota"`
}

// Marshal returns the compact JSON form that gets embedded.
func (m Metadata) Marshal() ([]byte, error) {
	if m.Usernames == nil {
		m.Usernames = []string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// ParseMetadata decodes an embedded record. Both fields must be present.
func ParseMetadata(data []byte) (Metadata, error) {
	if !utf8.Valid(data) {
		return Metadata{}, fmt.Errorf("%w: invalid UTF-8", ErrMalformedMetadata)
	}

	var rec struct {
		Usernames *[]string `json:"usernames"`
		Quota     *uint32   `json:"quota"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if rec.Usernames == nil || rec.Quota == nil {
		return Metadata{}, fmt.Errorf("%w: missing field", ErrMalformedMetadata)
	}
	return Metadata{Usernames: *rec.Usernames, Quota: *rec.Quota}, nil
}

// Authorized reports whether username is one of the permitted viewers.
func (m Metadata) Authorized(username string) bool {
	return slices.Contains(m.Usernames, username)
}

// DecrementQuota consumes one view. It returns false once the quota is exhausted.
func (m *Metadata) DecrementQuota() bool {
	if m.Quota == 0 {
		return false
	}
	m.Quota--
	return true
}
