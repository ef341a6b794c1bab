package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeyParts is everything a navigation tree's content depends on.
type KeyParts struct {
	Config   any      `json:"config"`
	Root     int64    `json:"root"`
	Groups   []string `json:"groups"`
	Host     string   `json:"host"`
	Language string   `json:"language"`
}

// Key hashes parts into a stable cache key. Groups are a set: order and
// duplicates do not change the key.
func Key(parts KeyParts) (string, error) {
	parts.Groups = normalizeGroups(parts.Groups)
	parts.Host = strings.ToLower(strings.TrimSpace(parts.Host))

	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}

	return "nav:" + strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

func normalizeGroups(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
