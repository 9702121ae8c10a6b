package scan

import (
	"fmt"
	"path"
	"strings"
)

// Decision is the outcome of the size/type filter for one candidate.
type Decision struct {
	Accept bool
	Reason string // empty when accepted
}

// Filter rejects candidates before they are ever opened. It is a pure
// function of path and size, the stat was already done during discovery.
type Filter struct {
	maxSize int64
	allowed map[string]struct{}
}

func NewFilter(maxSize int64, extensions []string) Filter {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return Filter{
		maxSize: maxSize,
		allowed: allowed,
	}
}

// Check accepts or rejects a candidate. Same input, same decision, always.
func (f Filter) Check(p string, size int64) Decision {
	ext := strings.ToLower(path.Ext(p))
	if _, ok := f.allowed[ext]; !ok {
		return Decision{Reason: fmt.Sprintf("extension %q not allowed", ext)}
	}
	if size > f.maxSize {
		return Decision{Reason: fmt.Sprintf("size %d over limit %d", size, f.maxSize)}
	}
	return Decision{Accept: true}
}
