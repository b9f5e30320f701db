package detection

import "DriverWatch/internal/entity"

// AnalyzeRequest is the JSON alternative to a multipart upload.
type AnalyzeRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	FileName    string `json:"file_name" validate:"omitempty,max=255"`
}

// AnalyzeInput is one image to judge, whatever transport it arrived on.
type AnalyzeInput struct {
	FileName string
	Data     []byte
	// Driver is set when the request carried a verified bearer token.
	Driver entity.DriverIdentity
}

type StreamError struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Sequence  int64  `json:"sequence"`
	RequestID string `json:"request_id,omitempty"`
}
