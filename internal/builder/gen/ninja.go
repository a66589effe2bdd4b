package gen

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type ninjaUnit struct {
	src  string
	obj  string
	deps []string
}

type NinjaGen struct {
	cxx, ld, cflags, ldflags string

	units    []ninjaUnit
	artifact string
	objects  []string
}

func (g *NinjaGen) SetToolchain(compiler, linker, cflags, ldflags string) {
	g.cxx, g.ld, g.cflags, g.ldflags = compiler, linker, cflags, ldflags
}

func (g *NinjaGen) BuildFile() string { return "build.ninja" }

var ninjaPathEscaper = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ", "\n", "$\n")

func quote(s string) string { return ninjaPathEscaper.Replace(filepath.ToSlash(s)) }

func (g *NinjaGen) AddUnit(source, object string, deps []string) {
	g.units = append(g.units, ninjaUnit{src: source, obj: object, deps: deps})
}

func (g *NinjaGen) SetArtifact(output string, objects []string) {
	g.artifact, g.objects = output, objects
}

func (g *NinjaGen) Generate() string {
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.1")
	writeln(&sb, "cxx = ", g.cxx)
	writeln(&sb, "ld = ", g.ld)
	writeln(&sb, "cflags = ", g.cflags)
	writeln(&sb, "ldflags = ", g.ldflags)
	writeln(&sb)

	write(&sb,
		`rule cc
  command = $cxx $cflags $in -c -o $out
  description = CC $in
`)
	write(&sb,
		`rule link
  command = $ld $in -o $out $ldflags
  description = LINK $out
`)
	writeln(&sb)

	for _, unit := range g.units {
		write(&sb, "build ", quote(unit.obj), ": cc ", quote(unit.src))
		if len(unit.deps) > 0 {
			write(&sb, " |")
			for _, dep := range unit.deps {
				write(&sb, " ", quote(dep))
			}
		}
		writeln(&sb)
	}

	if g.artifact != "" && len(g.objects) > 0 {
		writeln(&sb)
		write(&sb, "build ", quote(g.artifact), ": link")
		for _, obj := range g.objects {
			write(&sb, " ", quote(obj))
		}
		writeln(&sb)
		writeln(&sb, "default ", quote(g.artifact))
	}

	return sb.String()
}

func (g *NinjaGen) Invoke(buildDir string) error {
	cmd := exec.Command("ninja", "-C", buildDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

var _ Generator = (*NinjaGen)(nil)
