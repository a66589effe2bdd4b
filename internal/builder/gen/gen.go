// Package gen writes build files for external build tools describing the same
// compile and link graph the builder executes itself.
package gen

type Generator interface {
	SetToolchain(compiler, linker, cflags, ldflags string)
	// AddUnit adds a compilation unit; deps are the files it depends on besides source
	AddUnit(source, object string, deps []string)
	SetArtifact(output string, objects []string)
	Generate() string
	BuildFile() string
	Invoke(buildDir string) error
}
