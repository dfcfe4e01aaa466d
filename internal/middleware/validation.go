package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/sirupsen/logrus"
)

// ValidationMiddleware validates incoming requests against the served
// OpenAPI document, so schema errors are rejected before the pipeline runs.
type ValidationMiddleware struct {
	router  routers.Router
	logger  *logrus.Logger
	enabled bool
}

// ValidationConfig configures the validation middleware.
type ValidationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SpecPath string `yaml:"spec_path"`
}

// NewValidationMiddleware loads and validates the OpenAPI spec once at
// startup.
func NewValidationMiddleware(config *ValidationConfig, logger *logrus.Logger) (*ValidationMiddleware, error) {
	if config == nil {
		config = &ValidationConfig{Enabled: false, SpecPath: "docs/openapi.yaml"}
	}
	if config.SpecPath == "" {
		config.SpecPath = "docs/openapi.yaml"
	}

	vm := &ValidationMiddleware{
		logger:  logger,
		enabled: config.Enabled,
	}
	if !config.Enabled {
		logger.Info("OpenAPI validation middleware disabled")
		return vm, nil
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(config.SpecPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec from %s: %w", config.SpecPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}
	vm.router = router

	logger.WithField("spec_path", config.SpecPath).Info("OpenAPI validation middleware enabled")
	return vm, nil
}

// Middleware returns the HTTP middleware function.
func (vm *ValidationMiddleware) Middleware(next http.Handler) http.Handler {
	if !vm.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := vm.validateRequest(r); err != nil {
			vm.logger.WithError(err).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Warn("Request failed OpenAPI validation")
			vm.writeValidationError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (vm *ValidationMiddleware) validateRequest(r *http.Request) error {
	route, pathParams, err := vm.router.FindRoute(r)
	if err != nil {
		// Routes absent from the OpenAPI document (docs, health) pass through.
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return fmt.Errorf("route lookup failed: %w", err)
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
	}
	if len(body) > 0 {
		input.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}

func (vm *ValidationMiddleware) writeValidationError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"type":    "validation_error",
			"code":    400,
		},
		"timestamp": time.Now().Unix(),
	})
}
