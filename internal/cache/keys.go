package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Separator is the delimiter used in key construction
const Separator = ":"

// KeyBuilder builds namespaced Redis keys for PokeAPI resources.
//
// Raw resources live at {namespace}:res:{endpoint}:{id}; expanded variants
// of the same resource live below it at {namespace}:res:{endpoint}:{id}:x:{digest}
// so that a resource's expansions can be dropped with one pattern delete.
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a KeyBuilder. An empty namespace produces unprefixed keys.
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: strings.TrimSpace(namespace)}
}

// Namespace returns the key prefix.
func (kb *KeyBuilder) Namespace() string {
	return kb.namespace
}

// BuildKey joins components under the namespace.
func (kb *KeyBuilder) BuildKey(components ...string) string {
	if kb.namespace == "" {
		return strings.Join(components, Separator)
	}
	return kb.namespace + Separator + strings.Join(components, Separator)
}

// ResourceKey is the key of a raw resource document.
func (kb *KeyBuilder) ResourceKey(endpoint, id string) string {
	return kb.BuildKey("res", normalizePart(endpoint), normalizePart(id))
}

// ExpandedKey is the key of an expanded variant of a resource. Paths are
// order-insensitive.
func (kb *KeyBuilder) ExpandedKey(endpoint, id string, paths []string, depth int) string {
	return kb.ResourceKey(endpoint, id) + Separator + "x" + Separator + expandDigest(paths, depth)
}

// ExpandedPattern matches every expanded variant of a resource.
func (kb *KeyBuilder) ExpandedPattern(endpoint, id string) string {
	return kb.ResourceKey(endpoint, id) + Separator + "x" + Separator + "*"
}

// EndpointPattern matches every cached resource of an endpoint.
func (kb *KeyBuilder) EndpointPattern(endpoint string) string {
	return kb.BuildKey("res", normalizePart(endpoint)) + Separator + "*"
}

// ParseResourceKey extracts the endpoint and id from a raw or expanded
// resource key. ok is false for keys this builder did not produce.
func (kb *KeyBuilder) ParseResourceKey(key string) (endpoint, id string, ok bool) {
	prefix := kb.BuildKey("res") + Separator
	if !strings.HasPrefix(key, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(key, prefix), Separator)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func normalizePart(s string) string {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), "/"))
	return strings.ReplaceAll(s, Separator, "_")
}

func expandDigest(paths []string, depth int) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	h.Write([]byte(strconv.Itoa(depth)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
