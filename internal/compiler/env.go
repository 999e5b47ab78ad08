package compiler

import "strings"

// Env is an ordered list of KEY=VALUE pairs. When a key repeats, the last one wins,
// matching exec.Cmd.
type Env []string

// With returns a copy of e with key set to value
func (e Env) With(key, value string) Env {
	out := make(Env, 0, len(e)+1)
	out = append(out, e...)
	return append(out, key+"="+value)
}

// Get returns the effective value of key
func (e Env) Get(key string) (string, bool) {
	for i := len(e) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(e[i], "=")
		if ok && k == key {
			return v, true
		}
	}

	return "", false
}

// Merge returns e followed by other, so other's values win
func (e Env) Merge(other Env) Env {
	out := make(Env, 0, len(e)+len(other))
	out = append(out, e...)
	return append(out, other...)
}
