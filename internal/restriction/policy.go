package restriction

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

// AdminPolicy is an optional, additive defense-in-depth gate in front of the
// admin token-mint endpoint. It does not replace Evaluate (restriction.go), which
// remains the sole authority for per-secret IP/country/ASN/passphrase
// rules; AdminPolicy only adds a second opinion, expressed in Rego, on
// whether a request is even allowed to reach the admin endpoint at all.
type AdminPolicy struct {
	compiler *ast.Compiler
}

// LoadAdminPolicy compiles the given Rego module files. An empty list
// disables the gate (Allow always returns true), so operators who don't
// need it can skip writing policy files entirely.
func LoadAdminPolicy(filenames []string) (AdminPolicy, error) {
	if len(filenames) == 0 {
		return AdminPolicy{}, nil
	}

	modules := map[string]string{}
	for _, f := range filenames {
		content, err := os.ReadFile(f)
		if err != nil {
			return AdminPolicy{}, fmt.Errorf("restriction: read policy %s: %w", f, err)
		}
		modules[path.Base(f)] = string(content)
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return AdminPolicy{}, fmt.Errorf("restriction: compile policy: %w", err)
	}

	return AdminPolicy{compiler: compiler}, nil
}

// Enabled reports whether any Rego modules were loaded.
func (p AdminPolicy) Enabled() bool {
	return p.compiler != nil
}

// Allow evaluates data.admin.allow against the request, input shaped as
// method/path/token so operators can write ordinary Rego path-matching
// rules. A disabled policy always allows.
func (p AdminPolicy) Allow(ctx context.Context, r *http.Request) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}

	input := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"token":  r.Header.Get("Authorization"),
	}

	rg := rego.New(
		rego.Query("data.admin.allow"),
		rego.Compiler(p.compiler),
		rego.Input(input),
	)

	rs, err := rg.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("restriction: policy eval: %w", err)
	}
	if len(rs) == 0 {
		return false, nil
	}

	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		log.Print("restriction: policy rule did not return a bool")
		return false, nil
	}

	return allow, nil
}
