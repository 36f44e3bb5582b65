package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Cache namespaces. The version tag is folded into the physical key so a
// change to classifier or resolver logic rolls out without colliding with
// entries written by the previous version.
const (
	nsSponsorSniff = "sponsor-sniff"
	nsCardImage    = "card-image"

	cacheVersion = "v4"

	sniffTTL         = 10 * time.Minute
	imageTTL         = 12 * time.Hour
	imageDegradedTTL = time.Hour
)

// blobCache is a small key -> JSON blob store on the local filesystem.
// Entries are whole-value replacements, so concurrent requests racing on
// the same key is harmless (last write wins).
type blobCache struct {
	dir string
}

type cacheEnvelope struct {
	StoredAt int64           `json:"storedAt"`
	Value    json.RawMessage `json:"value"`
}

func newBlobCache(dir string) (*blobCache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "newsproxy-cache")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &blobCache{dir: dir}, nil
}

func (c *blobCache) path(ns, key string) string {
	h := sha256.Sum256([]byte(ns + "\x00" + cacheVersion + "\x00" + key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:16])+".json")
}

// get returns the stored value for (ns, key), or ok=false on miss,
// expiry, or a corrupt entry. Callers treat all three the same: recompute.
func (c *blobCache) get(ns, key string, ttl time.Duration) (json.RawMessage, bool) {
	data, err := os.ReadFile(c.path(ns, key))
	if err != nil {
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Value == nil {
		return nil, false
	}
	if time.Since(time.Unix(env.StoredAt, 0)) >= ttl {
		return nil, false
	}
	return env.Value, true
}

// getJSON unmarshals a cached value into out. Same miss semantics as get.
func (c *blobCache) getJSON(ns, key string, ttl time.Duration, out any) bool {
	raw, ok := c.get(ns, key, ttl)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *blobCache) set(ns, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	env, err := json.Marshal(cacheEnvelope{
		StoredAt: time.Now().Unix(),
		Value:    raw,
	})
	if err != nil {
		return
	}
	// Best effort; a failed write just means a recompute next time.
	os.WriteFile(c.path(ns, key), env, 0644)
}
