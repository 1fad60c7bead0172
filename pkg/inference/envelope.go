package inference

// Envelope is the JSON shape of every buffered response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Response is the data of a successful inference.
type Response struct {
	Text    string         `json:"text"`
	Raw     map[string]any `json:"raw,omitempty"`
	Sources []Source       `json:"sources,omitempty"`
}

func OK(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

func Fail(err error) Envelope {
	return Envelope{Success: false, Message: err.Error(), Data: nil}
}
