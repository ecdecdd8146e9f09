package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
	"github.com/gradnja/stroski-api/internal/config"
	"go.uber.org/zap"
)

// Downloads name their file in Content-Disposition and every response carries
// its request id, so the front-end always needs to read both.
var requiredExposedHeaders = []string{"Content-Disposition", RequestIDHeader}

var requiredAllowedHeaders = []string{"Content-Type", RequestIDHeader}

// CORS returns the cross-origin policy for the front-end. The configured
// header lists are extended with the headers the API itself relies on.
//
// Origins resolve as follows:
//   - "*" accepts any origin
//   - an explicit list accepts those origins, plus loopback origins on any
//     port in local environments
//   - no list accepts any origin locally and none elsewhere
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	local := isLocalEnvironment(environment)

	return cors.Handler(cors.Options{
		AllowOriginFunc:  originPolicy(cfg.AllowedOrigins, local, environment, logger),
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   mergeHeaders(cfg.AllowedHeaders, requiredAllowedHeaders),
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, requiredExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}

func originPolicy(origins []string, local bool, environment string, logger *zap.Logger) func(*http.Request, string) bool {
	anyOrigin := func(r *http.Request, origin string) bool { return origin != "" }

	for _, o := range origins {
		if o == "*" {
			if !local {
				logger.Warn("CORS configured with wildcard origin in non-development environment",
					zap.String("environment", environment))
			}
			return anyOrigin
		}
	}

	if len(origins) == 0 {
		if local {
			logger.Info("CORS configured to allow all origins in development mode")
			return anyOrigin
		}
		logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
			zap.String("environment", environment))
		return func(r *http.Request, origin string) bool { return false }
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	logger.Info("CORS configured with explicit origins", zap.Strings("origins", origins))

	return func(r *http.Request, origin string) bool {
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			return true
		}
		return local && isLoopbackOrigin(origin)
	}
}

// isLoopbackOrigin reports whether origin is an http(s) origin on this machine.
// Dev servers pick a free port, so the port is not checked.
func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func isLocalEnvironment(environment string) bool {
	return environment == "" || environment == "development" || environment == "local"
}

// mergeHeaders appends every required header missing from configured,
// comparing names case-insensitively.
func mergeHeaders(configured, required []string) []string {
	out := append([]string(nil), configured...)
	for _, h := range required {
		present := false
		for _, c := range configured {
			if strings.EqualFold(c, h) {
				present = true
				break
			}
		}
		if !present {
			out = append(out, h)
		}
	}
	return out
}
