package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/sources"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

// hop-by-hop and otherwise problematic headers stripped from proxied
// requests
var excludedRequestHeaders = map[string]struct{}{
	"host": {}, "content-length": {}, "transfer-encoding": {},
	"connection": {}, "upgrade": {}, "proxy-authenticate": {},
	"proxy-authorization": {}, "te": {}, "trailers": {},
}

var excludedResponseHeaders = map[string]struct{}{
	"content-encoding": {}, "content-length": {}, "transfer-encoding": {},
	"connection": {}, "upgrade": {}, "server": {},
}

// NewServiceRedirectHandler proxies the incoming request to the URL a
// registered service resolves to, relaying method, headers, query and
// body, and passing the upstream response through untouched.
func NewServiceRedirectHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	proxyClient := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "proxy-to-service")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		identifier, _ := url.QueryUnescape(chi.URLParam(r, "id"))
		if identifier == "" {
			writeDetail(w, http.StatusBadRequest, "no service identifier supplied")
			return
		}

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		targetURL, err := sources.NewSourceService(repo).ResolveServiceURL(ctx, identifier)
		if err != nil {
			log.Error().Err(err).Msgf("failed to resolve service %s", identifier)
			writeError(w, err)
			return
		}

		fullURL := strings.TrimRight(targetURL, "/")
		if rest := chi.URLParam(r, "*"); rest != "" {
			fullURL = fullURL + "/" + strings.TrimLeft(rest, "/")
		}
		if r.URL.RawQuery != "" {
			fullURL = fullURL + "?" + r.URL.RawQuery
		}

		var body io.Reader
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			body = r.Body
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, fullURL, body)
		if err != nil {
			log.Error().Err(err).Msg("failed to build proxy request")
			writeDetail(w, http.StatusBadGateway, "Error communicating with target service: "+err.Error())
			return
		}

		for name, values := range r.Header {
			if _, excluded := excludedRequestHeaders[strings.ToLower(name)]; excluded {
				continue
			}
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}

		resp, err := proxyClient.Do(req)
		if err != nil {
			log.Error().Err(err).Msgf("failed to proxy request to %s", fullURL)
			writeProxyError(w, err)
			return
		}
		defer resp.Body.Close()

		for name, values := range resp.Header {
			if _, excluded := excludedResponseHeaders[strings.ToLower(name)]; excluded {
				continue
			}
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}

		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	})
}

func writeProxyError(w http.ResponseWriter, err error) {
	if isTimeout(err) {
		writeDetail(w, http.StatusGatewayTimeout, "Service request timed out")
		return
	}
	writeDetail(w, http.StatusBadGateway, "Unable to connect to the target service")
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
