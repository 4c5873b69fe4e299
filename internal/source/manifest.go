package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"imgcat/internal/catalog"
	"imgcat/internal/hashtree"
)

// manifestNode is one entity of a YAML source snapshot. Only the child list
// matching the node's level is read. Hashes above the instance level are
// derived from the children when omitted.
type manifestNode struct {
	ID        string         `yaml:"id"`
	Hash      string         `yaml:"hash,omitempty"`
	URI       string         `yaml:"uri,omitempty"`
	Patients  []manifestNode `yaml:"patients,omitempty"`
	Studies   []manifestNode `yaml:"studies,omitempty"`
	Series    []manifestNode `yaml:"series,omitempty"`
	Instances []manifestNode `yaml:"instances,omitempty"`
}

type manifestFile struct {
	Collections []manifestNode `yaml:"collections"`
}

func (n *manifestNode) children(level catalog.Level) []manifestNode {
	switch level {
	case catalog.LevelCollection:
		return n.Patients
	case catalog.LevelPatient:
		return n.Studies
	case catalog.LevelStudy:
		return n.Series
	case catalog.LevelSeries:
		return n.Instances
	default:
		return nil
	}
}

// ManifestAdapter serves a YAML snapshot of a source tree, such as an export
// of a file-listing service.
type ManifestAdapter struct {
	name string
	root manifestNode
	// hashes caches the digest of every scope keyed by Scope.String.
	hashes map[string]string
}

// LoadManifest reads and indexes a manifest file.
func LoadManifest(name, path string) (*ManifestAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(name, data)
}

// ParseManifest indexes manifest content.
func ParseManifest(name string, data []byte) (*ManifestAdapter, error) {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", name, err)
	}
	a := &ManifestAdapter{
		name:   name,
		root:   manifestNode{Patients: file.Collections},
		hashes: make(map[string]string),
	}
	if _, err := a.index(&a.root, VersionScope()); err != nil {
		return nil, err
	}
	return a, nil
}

// index fills node hashes bottom-up and records each scope's digest.
func (a *ManifestAdapter) index(node *manifestNode, scope Scope) (string, error) {
	kids := a.childList(node, scope.Level)
	if scope.Level == catalog.LevelInstance {
		if strings.TrimSpace(node.Hash) == "" {
			return "", fmt.Errorf("manifest %s: instance %s has no hash", a.name, scope)
		}
		a.hashes[scope.String()] = node.Hash
		return node.Hash, nil
	}
	digests := make([]string, 0, len(kids))
	for i := range kids {
		h, err := a.index(&kids[i], scope.Child(kids[i].ID))
		if err != nil {
			return "", err
		}
		digests = append(digests, h)
	}
	if node.Hash == "" {
		node.Hash = hashtree.Combine(digests)
	}
	a.hashes[scope.String()] = node.Hash
	return node.Hash, nil
}

// childList returns the children of node; the synthetic root stores
// collections in Patients.
func (a *ManifestAdapter) childList(node *manifestNode, level catalog.Level) []manifestNode {
	if level == catalog.LevelVersion {
		return node.Patients
	}
	return node.children(level)
}

func (a *ManifestAdapter) lookup(scope Scope) *manifestNode {
	node := &a.root
	level := catalog.LevelVersion
	for _, id := range scope.Path {
		kids := a.childList(node, level)
		var next *manifestNode
		for i := range kids {
			if kids[i].ID == id {
				next = &kids[i]
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
		level = level.Child()
	}
	return node
}

// Name returns the configured source name.
func (a *ManifestAdapter) Name() string { return a.name }

// ListChildren returns the children recorded under scope, duplicates
// included.
func (a *ManifestAdapter) ListChildren(_ context.Context, scope Scope) ([]Child, error) {
	node := a.lookup(scope)
	if node == nil {
		return nil, nil
	}
	kids := a.childList(node, scope.Level)
	children := make([]Child, 0, len(kids))
	for _, k := range kids {
		children = append(children, Child{Identifier: k.ID, Hash: k.Hash, URI: k.URI})
	}
	return children, nil
}

// FetchHash returns the recorded or derived digest of scope.
func (a *ManifestAdapter) FetchHash(_ context.Context, scope Scope) (string, bool, error) {
	h, ok := a.hashes[scope.String()]
	return h, ok, nil
}
