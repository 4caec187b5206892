package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

// serverURL is the turnstream server's base URL, set by the --server
// persistent flag.
var serverURL string

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// doRequest issues method/path against the server, retrying a
// connection failure (the server not accepting connections yet) with
// exponential backoff. A 4xx/5xx response is not retried: the server
// answered, so retrying would just repeat whatever went wrong.
func doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var respBody []byte

	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, serverURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 {
			detail := gjson.GetBytes(data, "detail").String()
			if detail == "" {
				detail = string(data)
			}
			return backoff.Permanent(fmt.Errorf("server: %s (HTTP %d)", detail, resp.StatusCode))
		}
		respBody = data
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return respBody, nil
}

func postJSON(ctx context.Context, path string, body []byte) ([]byte, error) {
	return doRequest(ctx, http.MethodPost, path, body)
}

func getJSON(ctx context.Context, path string) ([]byte, error) {
	return doRequest(ctx, http.MethodGet, path, nil)
}
