package truefx

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// baseTransportConfig returns the HTTP transport used for archive downloads.
// The header wait is bounded by the same timeout as the whole download.
func baseTransportConfig(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: timeout,
		TLSHandshakeTimeout:   10 * time.Second,
		DisableKeepAlives:     true,
	}
}

// newHTTPClient creates a resty client with the download timeout and retry policy.
// Transport errors and 5xx/429 responses are retried; 4xx are final.
func newHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTransport(baseTransportConfig(timeout)).
		SetTimeout(timeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(retryDelay).
		SetRetryMaxWaitTime(4*retryDelay).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
}
