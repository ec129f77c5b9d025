// Package transform holds the named body transforms applied once when a page
// is written to the cache, e.g. stamping a marker tag into the HTML head.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Hook rewrites a rendered body before it is persisted. path is the request
// path the body was rendered for.
type Hook func(body []byte, path string) ([]byte, error)

var registry sync.Map

var (
	// ErrDuplicateHook indicates a name already has a hook registered.
	ErrDuplicateHook = errors.New("transform already registered")
	// ErrUnknownHook indicates no hook is registered under the requested name.
	ErrUnknownHook = errors.New("transform not registered")
)

// Register stores a hook under the given name.
func Register(name string, hook Hook) error {
	key := normalizeKey(name)
	if key == "" {
		return errors.New("transform name required")
	}
	if hook == nil {
		return errors.New("transform hook required")
	}
	if _, loaded := registry.LoadOrStore(key, hook); loaded {
		return ErrDuplicateHook
	}
	return nil
}

// MustRegister panics on registration failure.
func MustRegister(name string, hook Hook) {
	if err := Register(name, hook); err != nil {
		panic(err)
	}
}

// Fetch retrieves the hook registered under name.
func Fetch(name string) (Hook, bool) {
	key := normalizeKey(name)
	if key == "" {
		return nil, false
	}
	if value, ok := registry.Load(key); ok {
		if hook, ok := value.(Hook); ok {
			return hook, true
		}
	}
	return nil, false
}

// Resolve returns the hook for name, nil for an empty name, or ErrUnknownHook.
func Resolve(name string) (Hook, error) {
	if normalizeKey(name) == "" {
		return nil, nil
	}
	hook, ok := Fetch(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}
	return hook, nil
}

// Names lists registered hook names in sorted order.
func Names() []string {
	var names []string
	registry.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// Apply runs hook and converts a panic into an error, so a failing transform
// never leaves a partially rewritten body behind.
func Apply(hook Hook, body []byte, path string) (out []byte, err error) {
	if hook == nil {
		return body, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	// 传入副本，避免钩子原地修改调用方持有的响应正文。
	out, err = hook(append([]byte(nil), body...), path)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
