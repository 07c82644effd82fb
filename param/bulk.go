package param

import (
	"github.com/pa-m/paramopt/adaptor"
	"github.com/pa-m/paramopt/errs"
)

// Count returns the number of scalar values of kind T matching mode
// act, counting every entry of a matching collection leaf separately
// (spec §4.2: count).
func Count[T Scalar](s *Set, act Activity) int {
	n := 0
	for _, l := range leavesFor[T](s) {
		if act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			n++
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			n += len(c.Values)
		}
	}
	return n
}

// Boundaries appends the lower/upper bound of every matching leaf of
// kind T to los/his, in tree order (spec §4.2: boundaries). Unbounded
// leaves contribute their initialization range instead, since they
// have no constrained range to report.
func Boundaries[T Scalar](s *Set, los, his []T, act Activity) ([]T, []T) {
	emit := func(hasBounds bool, lb, ub, li, ui T) {
		if hasBounds {
			los, his = append(los, lb), append(his, ub)
		} else {
			los, his = append(los, li), append(his, ui)
		}
	}
	for _, l := range leavesFor[T](s) {
		if act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			emit(l.HasBounds, l.LowerBound, l.UpperBound, l.LowerInit, l.UpperInit)
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			for range c.Values {
				emit(c.HasBounds, c.LowerBound, c.UpperBound, c.LowerInit, c.UpperInit)
			}
		}
	}
	return los, his
}

// Streamline appends the current, bound-folded value of every
// matching leaf of kind T to out, in tree order (spec §4.2:
// streamline). The returned slice reuses out's backing array when it
// has sufficient capacity (teacher's types.go:resize idiom).
func Streamline[T Scalar](s *Set, out []T, act Activity) []T {
	n := Count[T](s, act)
	base := len(out)
	out = resizeT(out, base+n)
	i := base
	for _, l := range leavesFor[T](s) {
		if act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			out[i] = l.Visible()
			i++
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			copy(out[i:], c.Values)
			i += len(c.Values)
		}
	}
	return out
}

// StreamlineMap appends the current value of every matching leaf of
// kind T into out, keyed by name (spec §4.2: streamline into a
// mapping). Unnamed leaves are skipped, since a name-keyed mapping
// cannot address them.
func StreamlineMap[T Scalar](s *Set, out map[string][]T, act Activity) {
	for _, l := range leavesFor[T](s) {
		if l.Name != "" && act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			out[l.Name] = append(out[l.Name], l.Visible())
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if c.Name != "" && act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			out[c.Name] = append(out[c.Name], c.Values...)
		}
	}
}

// Assign copies values from in back into the tree starting at *pos,
// advancing *pos by the number of scalars consumed (spec §4.2:
// assign). It fails with StateViolation if in is exhausted before
// every matching leaf has been assigned.
func Assign[T Scalar](s *Set, in []T, pos *int, act Activity) error {
	take := func() (T, error) {
		var zero T
		if *pos >= len(in) {
			return zero, errs.New(errs.StateViolation, "assign: source sequence exhausted at position %d", *pos)
		}
		v := in[*pos]
		*pos++
		return v, nil
	}
	for _, l := range leavesFor[T](s) {
		if act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			v, err := take()
			if err != nil {
				return err
			}
			l.Value = v
			if l.HasBounds {
				l.Value = Transfer(l.Value, l.LowerBound, l.UpperBound)
			}
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			for i := range c.Values {
				v, err := take()
				if err != nil {
					return err
				}
				if c.HasBounds {
					v = Transfer(v, c.LowerBound, c.UpperBound)
				}
				c.Values[i] = v
			}
		}
	}
	return nil
}

// QueryAdaptorProperty collects the named property from every attached
// adaptor of kind adaptorName, across every matching leaf and
// collection leaf of kind T, in tree order (spec §4.8's
// adaptor-property logger, grounded on GAdaptorPropertyLogger's
// queryAdaptor: "loop over this individual's adaptors of the named
// kind and collect the named property from each"). Lives in package
// param because a leaf's adaptors slice is unexported.
func QueryAdaptorProperty[T Scalar](s *Set, adaptorName, property string, act Activity) []float64 {
	var out []float64
	collect := func(adaptors []adapting[T]) {
		for _, a := range adaptors {
			ps, ok := any(a).(adaptor.PropertySource)
			if !ok || ps.AdaptorKind() != adaptorName {
				continue
			}
			if v, ok := ps.Property(property); ok {
				out = append(out, v)
			}
		}
	}
	for _, l := range leavesFor[T](s) {
		if act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			collect(l.adaptors)
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			collect(c.adaptors)
		}
	}
	return out
}

// AssignMap copies values from in, keyed by name, back into the tree
// (spec §4.2: assign from a mapping). Leaves/collections with no
// matching key are left unchanged.
func AssignMap[T Scalar](s *Set, in map[string][]T, act Activity) error {
	for _, l := range leavesFor[T](s) {
		if l.Name == "" || !act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			continue
		}
		vs, ok := in[l.Name]
		if !ok || len(vs) == 0 {
			return errs.New(errs.StateViolation, "assign: no value for leaf %q", l.Name)
		}
		l.Value = vs[0]
		if l.HasBounds {
			l.Value = Transfer(l.Value, l.LowerBound, l.UpperBound)
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if c.Name == "" || !act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			continue
		}
		vs, ok := in[c.Name]
		if !ok || len(vs) < len(c.Values) {
			return errs.New(errs.StateViolation, "assign: insufficient values for collection %q", c.Name)
		}
		for i := range c.Values {
			v := vs[i]
			if c.HasBounds {
				v = Transfer(v, c.LowerBound, c.UpperBound)
			}
			c.Values[i] = v
		}
	}
	return nil
}
