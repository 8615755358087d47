package codemap

import "testing"

func TestMap_KnownDirectories(t *testing.T) {
	tests := []struct {
		path   string
		module string
		id     string
		dir    string
	}{
		{"src/services/billing.ts", "services", "service-billing", "services"},
		{"src/service/billing.ts", "services", "service-billing", "service"},
		{"app/models/User.rb", "models", "model-user", "models"},
		{"lib/utils/string_helpers.js", "utils", "util-string-helpers", "utils"},
		{"src/handlers/v1/orders/create.go", "handlers", "handler-create", "handlers"},
		{"commands/deploy.py", "commands", "command-deploy", "commands"},
		{"src/Config/database.ts", "config", "config-database", "Config"},
		{"src/middleware/auth.ts", "middleware", "middleware-auth", "middleware"},
		{"src/constants/limits.ts", "constants", "constant-limits", "constants"},
		{"src/interfaces/IRepo.ts", "interfaces", "interface-irepo", "interfaces"},
		{"src/routes/index.ts", "routes", "route-index", "routes"},
		{"src/types/api.d.ts", "types", "type-api-d", "types"},
	}
	for _, tt := range tests {
		m, ok := Map(tt.path)
		if !ok {
			t.Errorf("Map(%q): expected a mapping", tt.path)
			continue
		}
		if !m.Known {
			t.Errorf("Map(%q): expected known directory", tt.path)
		}
		if m.Module.ID != tt.module {
			t.Errorf("Map(%q): module = %q, want %q", tt.path, m.Module.ID, tt.module)
		}
		if m.ID != tt.id {
			t.Errorf("Map(%q): id = %q, want %q", tt.path, m.ID, tt.id)
		}
		if m.Directory != tt.dir {
			t.Errorf("Map(%q): directory = %q, want %q", tt.path, m.Directory, tt.dir)
		}
	}
}

func TestMap_UnknownDirectoryPassesThrough(t *testing.T) {
	m, ok := Map("src/payments/stripe-client.ts")
	if !ok {
		t.Fatal("expected a mapping")
	}
	if m.Known {
		t.Error("expected unknown directory")
	}
	if m.Module.ID != "payments" {
		t.Errorf("expected module payments, got %q", m.Module.ID)
	}
	if m.ID != "payment-stripe-client" {
		t.Errorf("expected id payment-stripe-client, got %q", m.ID)
	}
	if m.Module.Title != "Payments" {
		t.Errorf("expected title Payments, got %q", m.Module.Title)
	}
}

func TestMap_StripsOnlyOneRoot(t *testing.T) {
	m, ok := Map("src/lib/parse.ts")
	if !ok {
		t.Fatal("expected a mapping")
	}
	if m.Module.ID != "lib" || m.ID != "lib-parse" {
		t.Errorf("expected module lib / id lib-parse, got %q / %q", m.Module.ID, m.ID)
	}
}

func TestMap_TopLevelFileHasNoModule(t *testing.T) {
	m, ok := Map("src/index.ts")
	if !ok {
		t.Fatal("expected a mapping")
	}
	if m.HasModule() {
		t.Errorf("expected no module, got %q", m.Module.ID)
	}
	if m.ID != "index" {
		t.Errorf("expected id index, got %q", m.ID)
	}
	if m.Title != "Index" {
		t.Errorf("expected title Index, got %q", m.Title)
	}

	m, ok = Map("main.go")
	if !ok || m.HasModule() || m.ID != "main" {
		t.Errorf("unexpected mapping for main.go: %+v ok=%v", m, ok)
	}
}

func TestMap_Exclusions(t *testing.T) {
	excluded := []string{
		"src/services/billing.test.ts",
		"src/services/billing.spec.js",
		"internal/graph/assemble_test.go",
		"src/__tests__/billing.ts",
		"src/__mocks__/fs.ts",
		"tests/integration/run.py",
		"src/test/helpers.ts",
		"dist/services/billing.js",
		"node_modules/pkg/index.js",
		"src/services/test_billing.py",
	}
	for _, p := range excluded {
		if _, ok := Map(p); ok {
			t.Errorf("Map(%q): expected exclusion", p)
		}
	}

	kept := []string{"src/services/contest.ts", "src/inspector/view.ts"}
	for _, p := range kept {
		if _, ok := Map(p); !ok {
			t.Errorf("Map(%q): expected a mapping", p)
		}
	}
}

func TestSingular(t *testing.T) {
	tests := map[string]string{
		"payments":  "payment",
		"utilities": "utility",
		"classes":   "class",
		"access":    "access",
		"data":      "data",
		"s":         "s",
	}
	for in, want := range tests {
		if got := singular(in); got != want {
			t.Errorf("singular(%q) = %q, want %q", in, got, want)
		}
	}
}
