package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

const (
	maxSuggestions = 3
	maxScanDepth   = 4
	maxScanFiles   = 2000
)

// Loader reads Foundry and Hardhat JSON artifacts from disk
type Loader struct {
	root string
}

// NewLoader creates a loader resolving relative paths against the project root
func NewLoader(cfg *config.RuntimeConfig) *Loader {
	return &Loader{root: cfg.ProjectRoot}
}

// artifactJSON covers both layouts: Foundry nests bytecode under "object",
// Hardhat stores it as a string next to "contractName".
type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

type abiEntry struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Inputs []struct {
		Type string `json:"type"`
	} `json:"inputs"`
}

// Load reads and validates the artifact at path
func (l *Loader) Load(ctx context.Context, path string) (*models.ContractArtifact, error) {
	full := l.resolve(path)

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			msg := fmt.Sprintf("artifact %s does not exist", path)
			if suggestions := l.Suggest(path); len(suggestions) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
			}
			return nil, domain.NewError(domain.KindArtifactNotFound, "%s", msg)
		}
		return nil, domain.WrapError(domain.KindArtifactNotFound, err, "failed to read artifact %s", path)
	}

	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.WrapError(domain.KindArtifactMalformed, err, "artifact %s is not valid JSON", path)
	}

	bytecode, err := parseBytecode(raw.Bytecode)
	if err != nil {
		return nil, domain.WrapError(domain.KindArtifactMalformed, err, "artifact %s", path)
	}

	if len(bytes.TrimSpace(raw.ABI)) == 0 || string(bytes.TrimSpace(raw.ABI)) == "null" {
		return nil, domain.NewError(domain.KindArtifactMalformed, "artifact %s has no abi", path)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, domain.WrapError(domain.KindArtifactMalformed, err, "artifact %s has an unparsable abi", path)
	}
	var entries []abiEntry
	if err := json.Unmarshal(raw.ABI, &entries); err != nil {
		return nil, domain.WrapError(domain.KindArtifactMalformed, err, "artifact %s has an unparsable abi", path)
	}

	name := raw.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &models.ContractArtifact{
		Name:       name,
		SourcePath: path,
		Bytecode:   bytecode,
		ABI:        parsed,
		Interface:  interfaceOf(parsed, entries),
	}, nil
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.root == "" {
		return path
	}
	return filepath.Join(l.root, path)
}

func parseBytecode(raw json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("no bytecode")
	}

	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		var nested struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("bytecode is neither a string nor an object")
		}
		hexStr = nested.Object
	}

	hexStr = strings.TrimSpace(hexStr)
	if hexStr == "" || hexStr == "0x" {
		return nil, fmt.Errorf("no bytecode (abstract contract or interface?)")
	}
	if strings.Contains(hexStr, "__$") {
		return nil, fmt.Errorf("bytecode has unlinked library placeholders")
	}
	if !strings.HasPrefix(hexStr, "0x") {
		hexStr = "0x" + hexStr
	}
	code, err := hexutil.Decode(hexStr)
	if err != nil {
		return nil, fmt.Errorf("bytecode is not valid hex: %w", err)
	}
	return code, nil
}

// interfaceOf lists callable signatures, constructor first, methods in the
// order their names first appear in the abi
func interfaceOf(parsed abi.ABI, entries []abiEntry) []string {
	var sigs []string

	ctorTypes := make([]string, len(parsed.Constructor.Inputs))
	for i, in := range parsed.Constructor.Inputs {
		ctorTypes[i] = in.Type.String()
	}
	sigs = append(sigs, fmt.Sprintf("constructor(%s)", strings.Join(ctorTypes, ",")))

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Type != "function" || seen[e.Name] {
			continue
		}
		seen[e.Name] = true

		var overloads []string
		for _, m := range parsed.Methods {
			if m.RawName == e.Name {
				overloads = append(overloads, m.Sig)
			}
		}
		sort.Strings(overloads)
		sigs = append(sigs, overloads...)
	}
	return sigs
}

// Suggest returns up to three artifact paths resembling path, searching
// from its closest existing parent directory.
func (l *Loader) Suggest(path string) []string {
	full := l.resolve(path)
	dir := filepath.Dir(full)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}

	candidates := scanJSON(dir)
	if len(candidates) == 0 {
		return nil
	}

	pattern := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	matches := fuzzy.Find(pattern, candidates)

	var out []string
	for _, m := range matches {
		rel := filepath.Join(dir, m.Str)
		if l.root != "" && !filepath.IsAbs(path) {
			if r, err := filepath.Rel(l.root, rel); err == nil {
				rel = r
			}
		}
		out = append(out, rel)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func scanJSON(dir string) []string {
	var found []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(dir, p)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules" || strings.Count(rel, string(filepath.Separator)) >= maxScanDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".json") {
			found = append(found, rel)
		}
		if len(found) >= maxScanFiles {
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

var _ usecase.ArtifactLoader = (*Loader)(nil)
