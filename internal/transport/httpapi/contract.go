package httpapi

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"pyrefactor/internal/core/errors"
)

//go:embed openapi.yaml
var contractYAML []byte

// contract validates incoming requests against the embedded document.
type contract struct {
	doc    *openapi3.T
	router routers.Router
}

func loadContract() (*contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load openapi contract")
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "validate openapi contract")
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "build openapi router")
	}
	return &contract{doc: doc, router: router}, nil
}

// validate checks r against its operation. Requests that match no
// operation pass through so the mux can answer 404 or 405.
func (c *contract) validate(r *http.Request) error {
	route, params, err := c.router.FindRoute(r)
	if err != nil {
		return nil
	}
	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "request does not match contract")
	}
	return nil
}
