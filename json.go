package fetchkit

import (
	"context"
	"encoding/json"
	"net/http"
)

// FetchJSON runs req through e and decodes the body into T. found is false
// when the engine is offline and nothing is stored for req.
func FetchJSON[T any](ctx context.Context, e *Engine, req Request) (data T, found bool, err error) {
	resp, err := e.Do(ctx, req)
	if err != nil {
		return data, false, err
	}
	if resp == nil {
		return data, false, nil
	}
	if err := decodeJSON(resp, req.URL, &data); err != nil {
		return data, false, err
	}
	return data, true, nil
}

// GetJSON is FetchJSON for a plain GET.
func GetJSON[T any](ctx context.Context, e *Engine, url string) (T, bool, error) {
	return FetchJSON[T](ctx, e, Get(url))
}

// Mutate sends payload as JSON with the given method and decodes the reply
// into T. Mutations never read from or write to the cache.
func Mutate[T any](ctx context.Context, e *Engine, method, url string, payload any) (T, error) {
	var out T

	body, err := json.Marshal(payload)
	if err != nil {
		return out, &SerializationError{URL: url, Err: err}
	}
	cfg := RequestConfig{Method: method, Body: body}.WithHeader("Content-Type", "application/json")

	resp, err := e.Do(WithContextCacheDisabled(ctx), NewRequest(url, cfg))
	if err != nil {
		return out, err
	}
	if resp == nil {
		return out, ErrOffline
	}
	if len(resp.Body) == 0 || resp.StatusCode == http.StatusNoContent {
		return out, nil
	}
	if err := decodeJSON(resp, url, &out); err != nil {
		return out, err
	}
	return out, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse[T any] struct {
	Data   T `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQL posts a query with its variables and returns the "data" member.
// A non-empty "errors" member is returned as *GraphQLError.
func GraphQL[T any](ctx context.Context, e *Engine, url, query string, variables map[string]any) (T, error) {
	reply, err := Mutate[graphQLResponse[T]](ctx, e, http.MethodPost, url, graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return reply.Data, err
	}
	if len(reply.Errors) > 0 {
		messages := make([]string, 0, len(reply.Errors))
		for _, ge := range reply.Errors {
			messages = append(messages, ge.Message)
		}
		return reply.Data, &GraphQLError{Messages: messages}
	}
	return reply.Data, nil
}

func decodeJSON(resp *Response, url string, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &SerializationError{URL: url, Err: err}
	}
	return nil
}
