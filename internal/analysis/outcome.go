package analysis

import "time"

// Status of an analysis outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ReasonUnparseable is the failure reason for replies that carry no valid
// structured result.
const ReasonUnparseable = "unparseable response"

// Fields are the structured listing suggestions extracted from a reply.
type Fields struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	EstimatedPrice float64  `json:"estimated_price"`
	Condition      string   `json:"condition"`
	Tags           []string `json:"tags"`
}

// Timing records how long an analysis took end to end and inside the
// provider call itself.
type Timing struct {
	TotalMs        int64 `json:"total_ms"`
	ProviderCallMs int64 `json:"provider_call_ms"`
}

// Usage is the token consumption of one call. Estimated is set when the
// backend did not report counts and they were derived from text length.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	Estimated        bool  `json:"estimated,omitempty"`
}

// TotalTokens returns prompt plus completion tokens.
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Outcome is the result of analyzing one image. It is either a success with
// Result set, or a failure with Reason and RawText set. Timing and Usage are
// always present.
type Outcome struct {
	Status   Status  `json:"status"`
	Result   *Fields `json:"result,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	RawText  string  `json:"raw_text,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Model    string  `json:"model,omitempty"`
	Cached   bool    `json:"cached,omitempty"`
	Timing   Timing  `json:"timing"`
	Usage    Usage   `json:"usage"`
}

// Succeeded reports whether the outcome carries a structured result.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Status == StatusSuccess && o.Result != nil
}

// Success builds a successful outcome.
func Success(fields Fields) Outcome {
	if fields.Tags == nil {
		fields.Tags = []string{}
	}
	return Outcome{Status: StatusSuccess, Result: &fields}
}

// Failure builds a failed outcome. The raw text is kept for diagnosis.
func Failure(reason, rawText string) Outcome {
	return Outcome{Status: StatusFailure, Reason: reason, RawText: rawText}
}

// WithTiming sets the timing fields from durations.
func (o Outcome) WithTiming(total, providerCall time.Duration) Outcome {
	o.Timing = Timing{
		TotalMs:        total.Milliseconds(),
		ProviderCallMs: providerCall.Milliseconds(),
	}
	return o
}
