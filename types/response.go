package types

import "time"

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is the uniform chat output envelope returned regardless of
// provider.
type ChatResponse struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Usage     *Usage            `json:"usage,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// ImageData is one generated image, returned either by URL or inline.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ImageResponse is the uniform image output envelope.
type ImageResponse struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Status    string            `json:"status"`
	Images    []ImageData       `json:"images"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// VideoResponse is the uniform video output envelope. Video generation is
// asynchronous on every vendor we integrate; Status reflects the upstream
// operation state.
type VideoResponse struct {
	ID          string            `json:"id"`
	Provider    string            `json:"provider,omitempty"`
	Model       string            `json:"model,omitempty"`
	Status      string            `json:"status"`
	VideoURL    string            `json:"video_url,omitempty"`
	OperationID string            `json:"operation_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
}
