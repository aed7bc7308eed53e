package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "vault")
	path := writeFile(t, "name: ${SAMPLE_NAME}\n")

	s := sample{Limit: 7}
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "vault" || s.Limit != 7 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "limit: -1\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	s := sample{Name: "default"}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if s.Name != "default" {
		t.Errorf("defaults changed: %+v", s)
	}

	s.Limit = -3
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadOptional_BadYAML(t *testing.T) {
	path := writeFile(t, "name: [unclosed\n")
	var s sample
	if _, err := LoadOptional(path, &s); err == nil {
		t.Fatal("expected parse error")
	}
}
