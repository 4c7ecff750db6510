//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cfg "github.com/ArkLabsHQ/oracle-node/internal/config"
)

const output = "../../docs/environment.md"

func main() {
	var md strings.Builder
	md.WriteString("# Oracle node environment variables\n\n")
	md.WriteString("Both `oracled` and `oracle-cli` read their configuration from the environment, " +
		"every variable carrying the `ORACLE_` prefix.\n\n")
	md.WriteString("Generated from `config.EnvSpecs()`. **Do not edit manually.**\n\n")
	md.WriteString("| Variable | Default | Type | Description |\n")
	md.WriteString("|----------|---------|------|-------------|\n")

	for _, s := range cfg.EnvSpecs() {
		def := "`" + s.Default + "`"
		if s.Default == "" {
			def = "—"
		}
		desc := s.Description
		if s.Notes != "" {
			desc += "<br/><em>" + s.Notes + "</em>"
		}
		fmt.Fprintf(&md, "| `%s` | %s | `%s` | %s |\n", s.FullName, def, s.Type, desc)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(output, []byte(md.String()), 0o644); err != nil {
		panic(err)
	}
	fmt.Printf("wrote %d variables to %s\n", len(cfg.EnvSpecs()), output)
}
