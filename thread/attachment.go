package thread

// AttachmentStatus tracks an attachment's lifecycle.
type AttachmentStatus string

const (
	AttachmentPending AttachmentStatus = "pending"
	AttachmentStored  AttachmentStatus = "stored"
	AttachmentFailed  AttachmentStatus = "failed"
)

// Attachment is a logical file reference bound to a message.
type Attachment struct {
	Filename         string
	MimeType         string
	Bytes            []byte `json:"-"` // transient; never persisted directly
	FileID           string
	StoragePath      string
	Status           AttachmentStatus
	ProcessedContent map[string]interface{}
}

// NewAttachment creates a pending attachment from raw bytes.
func NewAttachment(filename string, data []byte, mimeType string) *Attachment {
	return &Attachment{
		Filename: filename,
		Bytes:    data,
		MimeType: mimeType,
		Status:   AttachmentPending,
	}
}
