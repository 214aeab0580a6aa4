// Package contract holds the OpenAPI description of the backend REST API and
// checks endpoint lists against it.
package contract

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/felixgeelhaar/taskdesk/internal/platform"
)

//go:embed openapi.yaml
var document []byte

// Finding is one mismatch between an endpoint list and the contract.
type Finding struct {
	Code    string
	Method  string
	Path    string
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Operation is one method on one path of the contract.
type Operation struct {
	Method  string `json:"method" yaml:"method"`
	Path    string `json:"path" yaml:"path"`
	Summary string `json:"summary" yaml:"summary"`
	Public  bool   `json:"public" yaml:"public"`
}

// Contract is a loaded and validated API description.
type Contract struct {
	doc *openapi3.T
}

// Load parses and validates the embedded contract.
func Load(ctx context.Context) (*Contract, error) {
	return Parse(ctx, document)
}

// Parse parses and validates an OpenAPI 3 document.
func Parse(ctx context.Context, data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load API contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid API contract: %w", err)
	}
	return &Contract{doc: doc}, nil
}

// Title returns the contract's title and version.
func (c *Contract) Title() string {
	return fmt.Sprintf("%s %s", c.doc.Info.Title, c.doc.Info.Version)
}

// Check reports every endpoint that the contract does not describe.
func (c *Contract) Check(endpoints []platform.Endpoint) []Finding {
	var findings []Finding
	for _, ep := range endpoints {
		path := normalizePath(ep.Path)
		method := strings.ToUpper(ep.Method)

		item := c.doc.Paths.Find(path)
		if item == nil {
			findings = append(findings, Finding{
				Code:    "MISSING_API_PATH",
				Method:  method,
				Path:    path,
				Message: fmt.Sprintf("path not in contract: %s %s", method, path),
			})
			continue
		}
		if item.GetOperation(method) == nil {
			findings = append(findings, Finding{
				Code:    "MISSING_API_METHOD",
				Method:  method,
				Path:    path,
				Message: fmt.Sprintf("method not in contract: %s %s", method, path),
			})
		}
	}
	return findings
}

// Operations lists the contract's operations ordered by path, then method.
func (c *Contract) Operations() []Operation {
	var ops []Operation
	for path, item := range c.doc.Paths.Map() {
		for method, op := range item.Operations() {
			ops = append(ops, Operation{
				Method:  method,
				Path:    path,
				Summary: op.Summary,
				Public:  op.Security != nil && len(*op.Security) == 0,
			})
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

// normalizePath drops the query string and ensures a single leading slash.
func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return "/" + strings.Trim(path, "/")
}
