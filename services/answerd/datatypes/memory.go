package datatypes

import "time"

// MemoryRecord is a durable per-user question/answer pair. Records never
// expire; AccessCount increments on every successful recall.
type MemoryRecord struct {
	OwnerID            string    `json:"owner_id"`
	Question           string    `json:"question"`
	NormalizedQuestion string    `json:"normalized_question"`
	Answer             string    `json:"answer"`
	GroundingRefs      []string  `json:"grounding_refs,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastAccessedAt     time.Time `json:"last_accessed_at"`
	AccessCount        int64     `json:"access_count"`
}

type SaveMemoryRequest struct {
	UserID   string   `json:"user_id" validate:"required,idtoken,max=128"`
	Question string   `json:"question" validate:"required,maxbytes"`
	Answer   string   `json:"answer" validate:"required"`
	Refs     []string `json:"refs,omitempty"`
}

func (r *SaveMemoryRequest) Validate() error {
	return answerValidate.Struct(r)
}

type ForgetMemoryRequest struct {
	UserID   string `json:"user_id" validate:"required,idtoken,max=128"`
	Question string `json:"question" validate:"required,maxbytes"`
}

func (r *ForgetMemoryRequest) Validate() error {
	return answerValidate.Struct(r)
}

// ForgetMemoryResponse reports whether anything was removed. Forgetting an
// absent record is not an error.
type ForgetMemoryResponse struct {
	Removed bool   `json:"removed"`
	Message string `json:"message,omitempty"`
}
