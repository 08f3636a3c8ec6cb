package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	modulePath = "contestvote"
	sharedPath = modulePath + "/internal/shared"
)

// layerRule is the import allowlist for one layer of a bounded context.
// Local entries are relative to the context root; the standard library is
// always allowed.
type layerRule struct {
	Local      []string
	Shared     []string
	ThirdParty []string
}

// rules is keyed by layer, or by "adapters/<name>" so every adapter carries
// the drivers it owns and nothing else.
var rules = map[string]layerRule{
	"domain": {
		Local: []string{"domain"},
	},
	"ports": {
		Local:  []string{"domain", "ports"},
		Shared: []string{"events", "outbox"},
	},
	"application": {
		Local: []string{"application", "domain", "ports"},
		ThirdParty: []string{
			"github.com/goccy/go-json",
			"github.com/gookit/validate",
			"golang.org/x/crypto",
			"golang.org/x/sync",
		},
	},
	"transport": {
		Local: []string{"transport"},
	},
	"adapters/memory": {
		Local:      []string{"domain", "ports"},
		Shared:     []string{"outbox"},
		ThirdParty: []string{"github.com/goccy/go-json", "github.com/google/uuid"},
	},
	"adapters/postgres": {
		Local:  []string{"domain", "ports"},
		Shared: []string{"outbox"},
		ThirdParty: []string{
			"github.com/goccy/go-json",
			"github.com/google/uuid",
			"github.com/jackc/pgx/v5",
			"gorm.io/gorm",
		},
	},
	"adapters/cache": {
		Local: []string{"domain", "ports"},
		ThirdParty: []string{
			"github.com/coocood/freecache",
			"github.com/goccy/go-json",
			"github.com/redis/go-redis/v9",
		},
	},
	"adapters/live": {
		Local:      []string{"domain", "ports"},
		ThirdParty: []string{"github.com/goccy/go-json", "github.com/gorilla/websocket"},
	},
	"adapters/http": {
		Local: []string{"application/commands", "application/queries", "domain", "transport"},
	},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		// contexts/<context>/<service>/<layer>/...; files at the service root
		// compose the layers and are not checked.
		if len(parts) < 5 || parts[0] != "contexts" {
			return nil
		}

		contextRoot := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])
		layer := parts[3]
		if layer == "adapters" {
			layer += "/" + parts[4]
		}
		violations = append(violations, validateFile(path, normalized, layer, contextRoot)...)
		return nil
	})

	return violations
}

func validateFile(path string, normalizedPath string, layer string, contextRoot string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	rule, known := rules[layer]
	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		report := func(reason string) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   reason,
			})
		}

		if !known {
			report(fmt.Sprintf("layer %q has no import rules", layer))
			continue
		}
		if msg := checkImport(rule, layer, importPath, contextRoot); msg != "" {
			report(msg)
		}
	}
	return violations
}

// checkImport returns the broken rule, or "" when the import is allowed.
func checkImport(rule layerRule, layer string, importPath string, contextRoot string) string {
	if isStdlib(importPath) {
		return ""
	}

	if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, contextRoot) {
		return "cross-context imports are forbidden"
	}
	if hasPrefix(importPath, modulePath+"/internal/app") || hasPrefix(importPath, modulePath+"/internal/platform") {
		return layer + " must not import runtime infrastructure"
	}
	if !strings.HasPrefix(layer, "adapters/") && strings.HasPrefix(importPath, contextRoot+"/adapters") {
		return layer + " must not import adapters"
	}

	var allowed []string
	for _, local := range rule.Local {
		allowed = append(allowed, contextRoot+"/"+local)
	}
	for _, shared := range rule.Shared {
		allowed = append(allowed, sharedPath+"/"+shared)
	}
	allowed = append(allowed, rule.ThirdParty...)
	if !isAllowed(importPath, allowed) {
		return layer + " import is outside explicit allowlist"
	}
	return ""
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
