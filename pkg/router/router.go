// Package router implements the smart-socket request router: an ordered
// set of (pattern, handler) routes matched against a textual request, with
// <name> placeholder capture. The host: compatibility fallback is not done
// here; internal/dispatch retries Match on the suffix after "host:".
package router

import (
	"context"
	"sort"
	"strings"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

// Handler is a route's business logic. params holds captured placeholder
// values by name; device is non-nil only for device-scoped routes.
type Handler func(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error)

// Route is one (pattern, handler) registration. Immutable after AddRoute.
type Route struct {
	Pattern      string
	Handler      Handler
	DeviceRoute  bool
	PrefixOnly   bool

	segments []segment
}

type segment struct {
	literal string // non-empty for a literal segment
	param   string // non-empty for a placeholder segment
}

// Router holds routes pre-sorted longest-pattern-first at registration
// time, per the spec's requirement that tie-breaking never happens on the
// hot match path.
type Router struct {
	routes []*Route
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// AddRoute registers pattern with handler and re-sorts the route table by
// descending pattern length, ties broken by registration order (Go's
// sort.SliceStable preserves relative order of equal-length patterns).
func (r *Router) AddRoute(pattern string, handler Handler, deviceRoute, prefixOnly bool) {
	route := &Route{
		Pattern:     pattern,
		Handler:     handler,
		DeviceRoute: deviceRoute,
		PrefixOnly:  prefixOnly,
		segments:    compilePattern(pattern),
	}
	r.routes = append(r.routes, route)
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].Pattern) > len(r.routes[j].Pattern)
	})
}

// compilePattern splits a pattern like "host:tport:serial:<serial>" into
// alternating literal/placeholder segments, in source order.
func compilePattern(pattern string) []segment {
	var segs []segment
	i := 0
	for i < len(pattern) {
		if pattern[i] == '<' {
			close := strings.IndexByte(pattern[i:], '>')
			if close == -1 {
				// Malformed pattern; treat the rest as a literal that can
				// never match so registration doesn't panic.
				segs = append(segs, segment{literal: pattern[i:]})
				break
			}
			name := pattern[i+1 : i+close]
			segs = append(segs, segment{param: name})
			i += close + 1
			continue
		}
		next := strings.IndexByte(pattern[i:], '<')
		if next == -1 {
			segs = append(segs, segment{literal: pattern[i:]})
			break
		}
		segs = append(segs, segment{literal: pattern[i : i+next]})
		i += next
	}
	return segs
}

// Match returns the first route (in pre-sorted order) whose pattern matches
// payload in full, plus its captured parameters.
func (r *Router) Match(payload string) (*Route, map[string]string) {
	for _, route := range r.routes {
		if params, ok := matchSegments(route.segments, payload); ok {
			return route, params
		}
	}
	return nil, nil
}

// matchSegments anchors segs against the whole of payload. A placeholder
// captures a greedy run up to the next literal segment's first byte, or to
// end-of-input if it is the final segment.
func matchSegments(segs []segment, payload string) (map[string]string, bool) {
	var params map[string]string
	pos := 0
	for i, seg := range segs {
		if seg.literal != "" {
			if !strings.HasPrefix(payload[pos:], seg.literal) {
				return nil, false
			}
			pos += len(seg.literal)
			continue
		}

		// Placeholder segment: find where the capture ends.
		remaining := payload[pos:]
		var captured string
		if i+1 < len(segs) && segs[i+1].literal != "" {
			stopByte := segs[i+1].literal[0]
			idx := strings.IndexByte(remaining, stopByte)
			if idx == -1 {
				return nil, false
			}
			captured = remaining[:idx]
		} else {
			captured = remaining
		}
		if captured == "" {
			return nil, false
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[seg.param] = captured
		pos += len(captured)
	}
	return params, pos == len(payload)
}
