package routes

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NewProxy forwards requests to the settlement node, stripping the mount
// prefix. When bearerToken is set the caller's Authorization header is
// replaced with the node RPC token, so gateway clients never hold it.
func NewProxy(target *url.URL, stripPrefix, bearerToken string) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	logger := slog.Default()
	basePath := strings.TrimSuffix(stripPrefix, "/")
	proxy.Director = func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		req.Host = target.Host
		path := req.URL.Path
		if basePath != "" && strings.HasPrefix(path, basePath) {
			path = strings.TrimPrefix(path, basePath)
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		req.URL.Path = singleJoiningSlash(target.Path, path)
		req.URL.RawPath = req.URL.EscapedPath()
		if bearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+bearerToken)
		}
		otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("node proxy failed", "path", r.URL.Path, "err", err)
		http.Error(w, "upstream error", http.StatusBadGateway)
	}
	proxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	return proxy
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
