package protocol

// Application message tags.
const (
	TagEncryptionRequest           = "EncryptionRequest"
	TagEncryptionResponse          = "EncryptionResponse"
	TagDecryptionRequest           = "DecryptionRequest"
	TagDecryptionResponse          = "DecryptionResponse"
	TagSendImage                   = "SendImage"
	TagSendImageResponse           = "SendImageResponse"
	TagQueryReceivedImages         = "QueryReceivedImages"
	TagQueryReceivedImagesResponse = "QueryReceivedImagesResponse"
	TagViewImage                   = "ViewImage"
	TagViewImageResponse           = "ViewImageResponse"
	TagErrorResponse               = "ErrorResponse"
)

// Message is a request or response carried inside envelopes.
// The set of implementations is closed; see DecodeMessage.
type Message interface {
	Tag() string
	isMessage()
}

// EncryptionRequest asks a node to scramble ImageData for Usernames.
type EncryptionRequest struct {
	RequestID      string   `json:"request_id"`
	ClientUsername string   `json:"client_username"`
	ImageData      []byte   `json:"image_data"` // PNG
	Usernames      []string `json:"usernames"`
	Quota          uint32   `json:"quota"`
}

type EncryptionResponse struct {
	RequestID      string `json:"request_id"`
	EncryptedImage []byte `json:"encrypted_image,omitempty"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// DecryptionRequest asks a node to restore a scrambled PNG.
type DecryptionRequest struct {
	RequestID      string `json:"request_id"`
	ClientUsername string `json:"client_username,omitempty"`
	EncryptedImage []byte `json:"encrypted_image"`
}

// DecryptionResponse returns the restored image and the metadata it carried.
type DecryptionResponse struct {
	RequestID      string   `json:"request_id"`
	DecryptedImage []byte   `json:"decrypted_image,omitempty"`
	Usernames      []string `json:"usernames,omitempty"`
	Quota          uint32   `json:"quota"`
	Success        bool     `json:"success"`
	Error          string   `json:"error,omitempty"`
}

// SendImage deposits an encrypted image in each recipient's inbox.
// An empty ImageID lets the node derive one from the content.
type SendImage struct {
	FromUsername   string   `json:"from_username"`
	ToUsernames    []string `json:"to_usernames"`
	EncryptedImage []byte   `json:"encrypted_image"`
	MaxViews       uint32   `json:"max_views"`
	ImageID        string   `json:"image_id"`
}

type SendImageResponse struct {
	Success bool   `json:"success"`
	ImageID string `json:"image_id"`
	Error   string `json:"error,omitempty"`
}

type QueryReceivedImages struct {
	Username string `json:"username"`
}

// ReceivedImageInfo describes one viewable inbox entry.
type ReceivedImageInfo struct {
	ImageID        string `json:"image_id"`
	FromUsername   string `json:"from_username"`
	RemainingViews uint32 `json:"remaining_views"`
	Timestamp      int64  `json:"timestamp"` // unix seconds
}

type QueryReceivedImagesResponse struct {
	Images []ReceivedImageInfo `json:"images"`
}

// ViewImage consumes one view of an inbox entry.
type ViewImage struct {
	Username string `json:"username"`
	ImageID  string `json:"image_id"`
}

// ViewImageResponse carries the decrypted image when the view was allowed.
// RemainingViews is nil when the entry was not found.
type ViewImageResponse struct {
	Success        bool    `json:"success"`
	ImageData      []byte  `json:"image_data,omitempty"`
	RemainingViews *uint32 `json:"remaining_views,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// ErrorResponse answers a request the node could not decode or does not serve.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

func (*EncryptionRequest) Tag() string           { return TagEncryptionRequest }
func (*EncryptionResponse) Tag() string          { return TagEncryptionResponse }
func (*DecryptionRequest) Tag() string           { return TagDecryptionRequest }
func (*DecryptionResponse) Tag() string          { return TagDecryptionResponse }
func (*SendImage) Tag() string                   { return TagSendImage }
func (*SendImageResponse) Tag() string           { return TagSendImageResponse }
func (*QueryReceivedImages) Tag() string         { return TagQueryReceivedImages }
func (*QueryReceivedImagesResponse) Tag() string { return TagQueryReceivedImagesResponse }
func (*ViewImage) Tag() string                   { return TagViewImage }
func (*ViewImageResponse) Tag() string           { return TagViewImageResponse }
func (*ErrorResponse) Tag() string               { return TagErrorResponse }

func (*EncryptionRequest) isMessage()           {}
func (*EncryptionResponse) isMessage()          {}
func (*DecryptionRequest) isMessage()           {}
func (*DecryptionResponse) isMessage()          {}
func (*SendImage) isMessage()                   {}
func (*SendImageResponse) isMessage()           {}
func (*QueryReceivedImages) isMessage()         {}
func (*QueryReceivedImagesResponse) isMessage() {}
func (*ViewImage) isMessage()                   {}
func (*ViewImageResponse) isMessage()           {}
func (*ErrorResponse) isMessage()               {}

// newMessage returns an empty message for tag, or nil if the tag is unknown.
func newMessage(tag string) Message {
	switch tag {
	case TagEncryptionRequest:
		return &EncryptionRequest{}
	case TagEncryptionResponse:
		return &EncryptionResponse{}
	case TagDecryptionRequest:
		return &DecryptionRequest{}
	case TagDecryptionResponse:
		return &DecryptionResponse{}
	case TagSendImage:
		return &SendImage{}
	case TagSendImageResponse:
		return &SendImageResponse{}
	case TagQueryReceivedImages:
		return &QueryReceivedImages{}
	case TagQueryReceivedImagesResponse:
		return &QueryReceivedImagesResponse{}
	case TagViewImage:
		return &ViewImage{}
	case TagViewImageResponse:
		return &ViewImageResponse{}
	case TagErrorResponse:
		return &ErrorResponse{}
	default:
		return nil
	}
}
