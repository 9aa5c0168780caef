package remote

import (
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// debugTransport logs request and response dumps. Enable with
// VAULT_DEBUG=true (or DEBUG=true) or WithDebugLogging.
type debugTransport struct{ base http.RoundTripper }

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := dt.base
	if base == nil {
		base = http.DefaultTransport
	}

	// multipart uploads stream from a pipe; dumping the body would drain it
	withBody := strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
	if reqDump, err := httputil.DumpRequestOut(req, withBody); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(reqDump)).Msg("HTTP request")
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

func debugLoggingRequested() bool {
	return os.Getenv("VAULT_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}
