package rag

import "fmt"

// SearchError reports which stage of a retrieval failed.
type SearchError struct {
	Component string // embedder, vector_db or synthesizer
	Operation string
	Message   string
	Query     string
	Err       error
}

func (e *SearchError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Component, e.Operation, e.Message)
	if e.Query != "" {
		query := e.Query
		if len(query) > 50 {
			query = query[:50] + "..."
		}
		msg += fmt.Sprintf(" (query: %q)", query)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func NewSearchError(component, operation, message, query string, err error) *SearchError {
	return &SearchError{
		Component: component,
		Operation: operation,
		Message:   message,
		Query:     query,
		Err:       err,
	}
}
