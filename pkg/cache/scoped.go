package cache

// ScopedKeyer wraps a Keyer with a prefix so that several projects can share
// one backend without seeing each other's entries.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "legacypack:myapp:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// TransformKey generates a prefixed key for a downgraded module.
func (k *ScopedKeyer) TransformKey(source []byte, opts TransformKeyOpts) string {
	return k.prefix + k.inner.TransformKey(source, opts)
}
