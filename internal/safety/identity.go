// Package safety is the gate every mutating component passes through before
// it touches disk, the shell, or the LLM: identity checksums, the input
// sanitizer, the output validator, the command whitelist, and the auth rate
// limiter (§4.1).
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jhmac/sneebly/internal/logging"
)

// IdentityChange describes one identity file whose hash no longer matches
// the persisted baseline.
type IdentityChange struct {
	File     string `json:"file"`
	OldHash  string `json:"oldHash"`
	NewHash  string `json:"newHash"`
}

// IdentityVerification is the result of re-hashing every declared identity
// file and comparing it against the persisted baseline.
type IdentityVerification struct {
	Valid   bool              `json:"valid"`
	Changes []IdentityChange  `json:"changes,omitempty"`
}

// IdentityGuard hashes and re-verifies the owner-authored identity files
// (SOUL, AGENTS, IDENTITY, USER, TOOLS, HEARTBEAT, GOALS). Identity files
// are never mutation targets, and a mismatch halts all autonomous mutation
// until the owner acknowledges the change.
type IdentityGuard struct {
	mu         sync.RWMutex
	workspace  string
	files      []string
	checksums  map[string]string
	haltReason string
}

const identityChecksumFile = "identity-checksums.json"

// NewIdentityGuard creates a guard over the given identity file names,
// resolved relative to workspace.
func NewIdentityGuard(workspace string, files []string) *IdentityGuard {
	return &IdentityGuard{
		workspace: workspace,
		files:     append([]string(nil), files...),
		checksums: make(map[string]string),
	}
}

func (g *IdentityGuard) checksumPath() string {
	return filepath.Join(g.workspace, ".sneebly", identityChecksumFile)
}

// Initialize hashes each identity file and persists the baseline. Call this
// once, at first setup.
func (g *IdentityGuard) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sums := make(map[string]string, len(g.files))
	for _, f := range g.files {
		hash, err := hashFile(filepath.Join(g.workspace, f))
		if err != nil {
			if os.IsNotExist(err) {
				continue // optional identity file not present yet
			}
			return fmt.Errorf("hashing identity file %s: %w", f, err)
		}
		sums[f] = hash
	}
	g.checksums = sums
	return g.persist()
}

func (g *IdentityGuard) persist() error {
	path := g.checksumPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g.checksums, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (g *IdentityGuard) load() error {
	data, err := os.ReadFile(g.checksumPath())
	if err != nil {
		return err
	}
	var sums map[string]string
	if err := json.Unmarshal(data, &sums); err != nil {
		return err
	}
	g.checksums = sums
	return nil
}

// Verify recomputes every identity file's hash and compares it with the
// persisted baseline, loading the baseline from disk first if it hasn't
// been loaded yet. A mismatch (or a newly-appeared/removed file) halts
// autonomous mutation until AcknowledgeChanges is called.
func (g *IdentityGuard) Verify() (IdentityVerification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.checksums) == 0 {
		if err := g.load(); err != nil && !os.IsNotExist(err) {
			return IdentityVerification{}, err
		}
	}

	var changes []IdentityChange
	for _, f := range g.files {
		current, err := hashFile(filepath.Join(g.workspace, f))
		if err != nil {
			if os.IsNotExist(err) {
				current = ""
			} else {
				return IdentityVerification{}, fmt.Errorf("hashing identity file %s: %w", f, err)
			}
		}
		baseline := g.checksums[f]
		if baseline != current {
			changes = append(changes, IdentityChange{File: f, OldHash: baseline, NewHash: current})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].File < changes[j].File })

	valid := len(changes) == 0
	if !valid {
		g.haltReason = fmt.Sprintf("%d identity file(s) changed since baseline", len(changes))
		logging.SafetyError("identity verify failed: %s", g.haltReason)
	} else {
		g.haltReason = ""
	}
	return IdentityVerification{Valid: valid, Changes: changes}, nil
}

// Halted reports whether autonomous mutation is currently halted due to an
// unacknowledged identity mismatch.
func (g *IdentityGuard) Halted() (bool, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.haltReason != "", g.haltReason
}

// AcknowledgeChanges refreshes the baseline to the identity files' current
// on-disk contents, clearing any halt. This is an owner-only operation.
func (g *IdentityGuard) AcknowledgeChanges() error {
	g.mu.Lock()
	g.haltReason = ""
	g.mu.Unlock()
	return g.Initialize()
}

// IsIdentityFile reports whether path (relative or absolute) resolves to one
// of the declared identity files. Used by the output validator to refuse
// any proposed mutation targeting identity.
func (g *IdentityGuard) IsIdentityFile(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	base := filepath.Base(path)
	for _, f := range g.files {
		if base == f {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
