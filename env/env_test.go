package env_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/artpar/conftree/core/tree"
	"github.com/artpar/conftree/env"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want env.Environment
	}{
		{"default", nil, env.Development},
		{"conftree env", map[string]string{"CONFTREE_ENV": "production"}, env.Production},
		{"app env fallback", map[string]string{"APP_ENV": "staging"}, env.Staging},
		{"go env fallback", map[string]string{"GO_ENV": "test"}, env.Test},
		{"conftree wins", map[string]string{
			"CONFTREE_ENV": "production",
			"APP_ENV":      "staging",
		}, env.Production},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"CONFTREE_ENV", "APP_ENV", "GO_ENV"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.vars {
				t.Setenv(k, v)
			}
			if got := env.Detect(); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromContext_Default(t *testing.T) {
	if got := env.FromContext(context.Background()); got != env.Development {
		t.Errorf("FromContext() = %q, want development", got)
	}
}

func TestWithEnvironment_ScopedOverride(t *testing.T) {
	parent := env.WithEnvironment(context.Background(), env.Production)
	child := env.WithEnvironment(parent, env.Test)

	if got := env.FromContext(child); got != env.Test {
		t.Errorf("child = %q, want test", got)
	}
	// The parent scope is untouched by the child override.
	if got := env.FromContext(parent); got != env.Production {
		t.Errorf("parent = %q, want production", got)
	}
}

func TestRegistry_IsolatesEnvironments(t *testing.T) {
	r := env.NewRegistry()

	if err := r.Env(env.Development).Set("database_url", "dev.local"); err != nil {
		t.Fatal(err)
	}
	if err := r.Env(env.Production).Set("database_url", "prod.internal"); err != nil {
		t.Fatal(err)
	}

	dev, err := r.Env(env.Development).GetString("database_url")
	if err != nil || dev != "dev.local" {
		t.Errorf("development database_url = %q, err = %v", dev, err)
	}
	prod, err := r.Env(env.Production).GetString("database_url")
	if err != nil || prod != "prod.internal" {
		t.Errorf("production database_url = %q, err = %v", prod, err)
	}
}

func TestRegistry_EnvReturnsSameRoot(t *testing.T) {
	r := env.NewRegistry()
	if r.Env(env.Staging) != r.Env(env.Staging) {
		t.Error("repeated Env() calls returned different roots")
	}
}

func TestRegistry_Configure(t *testing.T) {
	r := env.NewRegistry()
	ctx := env.WithEnvironment(context.Background(), env.Staging)

	err := r.Configure(ctx, func(n *tree.Node) error {
		return n.Set("feature_flag", true)
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	flag, err := r.Env(env.Staging).GetBool("feature_flag")
	if err != nil || !flag {
		t.Errorf("staging feature_flag = %v, err = %v", flag, err)
	}
	if r.Env(env.Development).Has("feature_flag") {
		t.Error("configure leaked into development")
	}
}

func TestRegistry_Environments(t *testing.T) {
	r := env.NewRegistry()
	r.Env(env.Production)
	r.Env(env.Development)

	want := []env.Environment{env.Development, env.Production}
	if got := r.Environments(); !reflect.DeepEqual(got, want) {
		t.Errorf("Environments() = %v, want %v", got, want)
	}
}

func TestTeams_IsolatesRoots(t *testing.T) {
	teams := env.NewTeams()

	err := teams.Configure("payments", func(n *tree.Node) error {
		return n.Set("api_url", "https://payments.internal")
	})
	if err != nil {
		t.Fatal(err)
	}
	err = teams.Configure("search", func(n *tree.Node) error {
		return n.Set("api_url", "https://search.internal")
	})
	if err != nil {
		t.Fatal(err)
	}

	payments, err := teams.Team("payments").GetString("api_url")
	if err != nil || payments != "https://payments.internal" {
		t.Errorf("payments api_url = %q, err = %v", payments, err)
	}
	search, err := teams.Team("search").GetString("api_url")
	if err != nil || search != "https://search.internal" {
		t.Errorf("search api_url = %q, err = %v", search, err)
	}
}
