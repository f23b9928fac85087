package filter

// Opt is an optional value with an explicit "not set" state.
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] { return Opt[T]{value: v, set: true} }

// None returns an unset Opt.
func None[T any]() Opt[T] { return Opt[T]{} }

// FromPtr converts a nullable pointer (as decoded from JSON) into an Opt.
func FromPtr[T any](p *T) Opt[T] {
	if p == nil {
		return Opt[T]{}
	}
	return Some(*p)
}

// Get returns the value and whether it was set.
func (o Opt[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports whether a value was provided.
func (o Opt[T]) IsSet() bool { return o.set }
