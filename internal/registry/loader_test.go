package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"specd/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"model.json": FormatTFJS,
		"a.JSON":     FormatTFJS,
		"net.h5":     FormatKeras,
		"w.bin":      FormatUnknown,
		"noext":      FormatUnknown,
	}
	for in, want := range cases {
		if got := DetectFormat(in); got != want {
			t.Fatalf("DetectFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScanFiltersModels(t *testing.T) {
	st := newStore(t)
	for _, name := range []string{"model.json", "model.h5", "model.weights.bin"} {
		if err := st.WriteFile("p1", store.ModelFolder, name, []byte("x")); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	models, err := Scan(st, "p1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %+v", models)
	}
	if models[0].ID != "model.h5" || models[0].Format != string(FormatKeras) {
		t.Fatalf("unexpected first model: %+v", models[0])
	}
	if models[1].ID != "model.json" || models[1].Format != string(FormatTFJS) || models[1].SizeBytes != 1 {
		t.Fatalf("unexpected second model: %+v", models[1])
	}
}

func TestScanEmptyProject(t *testing.T) {
	st := newStore(t)
	models, err := Scan(st, "nothing-here")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected no models, got %+v", models)
	}
}

func TestResolve(t *testing.T) {
	st := newStore(t)
	if err := st.WriteFile("p1", store.ModelFolder, "net.h5", []byte("hdf")); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := Resolve(st, "p1", "net.h5")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m.Format != string(FormatKeras) || m.Project != "p1" || filepath.Base(m.Path) != "net.h5" {
		t.Fatalf("unexpected model: %+v", m)
	}
	for _, missing := range []string{"", "other.h5", "../net.h5"} {
		if _, err := Resolve(st, "p1", missing); !errors.Is(err, ErrModelNotFound) {
			t.Fatalf("Resolve(%q) err=%v, want ErrModelNotFound", missing, err)
		}
	}
}
