package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigChanged(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name  string
		paths []string
		want  bool
	}{
		{"source only", []string{filepath.Join(root, "src", "a.cpp")}, false},
		{"config", []string{filepath.Join(root, "src", "a.cpp"), filepath.Join(root, "Rebuild.toml")}, true},
		{"dotenv", []string{filepath.Join(root, ".env")}, true},
		{"config outside root", []string{filepath.Join(root, "src", "Rebuild.toml")}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, configChanged(root, tt.paths))
		})
	}
}
