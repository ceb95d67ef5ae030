package lambdafn

import "strings"

// Discriminator decides whether a Source understands an invocation payload
// by looking at a few fields, without decoding the whole envelope.
type Discriminator interface {
	Match(v View) bool
}

// DiscriminatorFunc adapts a function to the Discriminator interface.
type DiscriminatorFunc func(v View) bool

// Match implements the Discriminator interface.
func (f DiscriminatorFunc) Match(v View) bool { return f(v) }

// HasFields matches when all paths exist.
func HasFields(paths ...string) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		for _, p := range paths {
			if !v.HasField(p) {
				return false
			}
		}
		return true
	})
}

// FieldEquals matches when the path holds exactly the given string.
func FieldEquals(path, value string) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		s, ok := v.GetString(path)
		return ok && s == value
	})
}

// FieldHasPrefix matches when the path holds a string starting with prefix.
// Useful for ARNs, e.g. FieldHasPrefix("Records.0.eventSourceARN", "arn:aws:sqs:").
func FieldHasPrefix(path, prefix string) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		s, ok := v.GetString(path)
		return ok && strings.HasPrefix(s, prefix)
	})
}

// And matches when every discriminator matches.
func And(ds ...Discriminator) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		for _, d := range ds {
			if !d.Match(v) {
				return false
			}
		}
		return true
	})
}

// Or matches when any discriminator matches.
func Or(ds ...Discriminator) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		for _, d := range ds {
			if d.Match(v) {
				return true
			}
		}
		return false
	})
}

// Not inverts d.
func Not(d Discriminator) Discriminator {
	return DiscriminatorFunc(func(v View) bool { return !d.Match(v) })
}
