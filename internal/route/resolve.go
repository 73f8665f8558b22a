// Package route turns an inbound proxy URL into an upstream path, query and host.
package route

import (
	"errors"
	"net/url"
	"strings"

	"alpaca-proxy-go/internal/model"
)

var (
	// ErrInvalidPath is returned when the inbound path is outside the mount
	// prefix or contains dot segments.
	ErrInvalidPath = errors.New("invalid path")
	// ErrHelp is returned when no upstream path was given.
	ErrHelp = errors.New("no upstream path given")
)

// ArtifactParam is the query parameter the hosting platform's rewrite rule
// uses to carry the original path. It is never forwarded upstream.
const ArtifactParam = "path"

// unexpandedArtifact is the literal value left behind when a rewrite rule
// did not substitute the path.
const unexpandedArtifact = "$path"

// Resolve strips mountPrefix from rawPath, removes the routing artifact from
// rawQuery and returns the normalized upstream path and query. rawPath must
// be the escaped path. Domain and Kind are left for Select to fill.
func Resolve(rawPath, rawQuery, mountPrefix string) (model.Target, error) {
	if rawPath != mountPrefix && !strings.HasPrefix(rawPath, mountPrefix+"/") {
		return model.Target{}, ErrInvalidPath
	}
	rest := rawPath[len(mountPrefix):]

	query, segments := splitArtifact(rawQuery)
	if strings.Trim(rest, "/") == "" && len(segments) > 0 {
		rest = "/" + joinSegments(segments)
	}

	p := NormalizePath(rest)
	if hasDotSegment(p) {
		return model.Target{}, ErrInvalidPath
	}
	if p == "/" {
		return model.Target{}, ErrHelp
	}

	return model.Target{Path: p, Query: query}, nil
}

// NormalizePath collapses repeated slashes and guarantees a leading slash.
// It is idempotent.
func NormalizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// splitArtifact drops every ArtifactParam pair from rawQuery, preserving the
// order and encoding of the rest, and returns the dropped values that name
// real path segments.
func splitArtifact(rawQuery string) (string, []string) {
	if rawQuery == "" {
		return "", nil
	}

	var kept, segments []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(pair, "=")
		if unescapeQuery(rawKey) != ArtifactParam {
			kept = append(kept, pair)
			continue
		}
		if v := unescapeQuery(rawVal); v != "" && v != unexpandedArtifact {
			segments = append(segments, v)
		}
	}
	return strings.Join(kept, "&"), segments
}

// joinSegments re-escapes decoded segment values and joins them with "/".
func joinSegments(values []string) string {
	var parts []string
	for _, v := range values {
		for _, s := range strings.Split(v, "/") {
			if s != "" {
				parts = append(parts, url.PathEscape(s))
			}
		}
	}
	return strings.Join(parts, "/")
}

func hasDotSegment(p string) bool {
	for _, s := range strings.Split(p, "/") {
		if u, err := url.PathUnescape(s); err == nil {
			s = u
		}
		if s == "." || s == ".." {
			return true
		}
	}
	return false
}

func unescapeQuery(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
