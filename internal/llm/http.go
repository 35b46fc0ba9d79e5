package llm

import (
	"strings"

	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 512

func newRESTClient(baseURL string, headers map[string]string) *resty.Client {
	return resty.New().
		SetDebug(false).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeaders(headers)
}

// handleError turns a failing response (>399 status code) into a
// StatusError. Without this, failing responses would have nil error.
func handleError(provider string, res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		body := strings.TrimSpace(res.String())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "..."
		}
		return res, &StatusError{Provider: provider, StatusCode: res.StatusCode(), Body: body}
	}
	return res, nil
}
