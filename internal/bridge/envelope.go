package bridge

import "encoding/json"

// Envelope types spoken over the extension socket. Inbound and
// outbound share the wire shape; the type field decides which other
// fields are meaningful.
const (
	// inbound
	EnvelopeMessage             = "message"
	EnvelopeActionResponse      = "action_response"
	EnvelopeBrowserActionResult = "browser_action_result"
	EnvelopeTabState            = "tab_state"

	// outbound
	EnvelopeResponseStart = "response_start"
	EnvelopeResponseChunk = "response_chunk"
	EnvelopeResponseEnd   = "response_end"
	EnvelopeBrowserAction = "browser_action"
	EnvelopeActionRequest = "action_request"
	EnvelopeError         = "error"
)

// Envelope is one frame on the socket.
type Envelope struct {
	Type string `json:"type"`

	// message
	Text        string          `json:"text,omitempty"`
	Tab         *TabInfo        `json:"tab,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`

	// action_response / browser_action_result / browser_action /
	// action_request
	Token    string         `json:"token,omitempty"`
	Approved *bool          `json:"approved,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Action   string         `json:"action,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Summary  string         `json:"summary,omitempty"`

	// response_chunk
	Tool string `json:"tool,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// TabInfo describes the extension's active tab.
type TabInfo struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}
