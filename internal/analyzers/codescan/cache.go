package codescan

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// analysisCache memoizes per-file extraction keyed by content hash, so a
// rerun over unchanged revisions skips the parse entirely
type analysisCache struct {
	store *gocache.Cache
}

func newAnalysisCache() *analysisCache {
	return &analysisCache{store: gocache.New(30*time.Minute, 10*time.Minute)}
}

func cacheKey(lang string, code []byte) string {
	sum := sha256.Sum256(code)
	return lang + ":" + hex.EncodeToString(sum[:])
}

func (c *analysisCache) get(lang string, code []byte) (*FileAnalysis, bool) {
	v, ok := c.store.Get(cacheKey(lang, code))
	if !ok {
		return nil, false
	}
	fa, ok := v.(*FileAnalysis)
	return fa, ok
}

func (c *analysisCache) put(lang string, code []byte, fa *FileAnalysis) {
	c.store.Set(cacheKey(lang, code), fa, gocache.DefaultExpiration)
}

// rebound returns a copy of the analysis bound to a different path. Cache
// entries are shared between identical files, so evidence locations must
// name the file actually analyzed.
func (fa *FileAnalysis) rebound(path string) *FileAnalysis {
	out := *fa
	out.File = path
	out.Handlers = append([]Handler(nil), fa.Handlers...)
	for i := range out.Handlers {
		out.Handlers[i].File = path
	}
	out.DBRefs = append([]DBRef(nil), fa.DBRefs...)
	for i := range out.DBRefs {
		out.DBRefs[i].File = path
	}
	return &out
}
