package predicate

import (
	"sort"
	"strings"

	"github.com/ripplekit/storebridge/internal/core"
)

// Matches reports whether a native-shape record satisfies every condition
// in the list (implicit conjunction).
func Matches(rec core.Record, conds []core.Condition) bool {
	for i := range conds {
		if !matchOne(rec, &conds[i]) {
			return false
		}
	}
	return true
}

func matchOne(rec core.Record, cond *core.Condition) bool {
	if len(cond.And) > 0 {
		return Matches(rec, cond.And)
	}
	if len(cond.Or) > 0 {
		for i := range cond.Or {
			if matchOne(rec, &cond.Or[i]) {
				return true
			}
		}
		return false
	}

	value, present := rec[cond.Column]
	switch cond.Operator {
	case core.OpEq:
		return present && equal(value, cond.Value)
	case core.OpNe:
		return !present || !equal(value, cond.Value)
	case core.OpGt:
		cmp, ok := compare(value, cond.Value)
		return ok && cmp > 0
	case core.OpGe:
		cmp, ok := compare(value, cond.Value)
		return ok && cmp >= 0
	case core.OpLt:
		cmp, ok := compare(value, cond.Value)
		return ok && cmp < 0
	case core.OpLe:
		cmp, ok := compare(value, cond.Value)
		return ok && cmp <= 0
	case core.OpContains:
		s, sub, ok := stringPair(value, cond.Value)
		return ok && strings.Contains(s, sub)
	case core.OpNotContains:
		s, sub, ok := stringPair(value, cond.Value)
		return !ok || !strings.Contains(s, sub)
	case core.OpBeginsWith:
		s, prefix, ok := stringPair(value, cond.Value)
		return ok && strings.HasPrefix(s, prefix)
	case core.OpBetween:
		if len(cond.Values) != 2 {
			return false
		}
		lo, okLo := compare(value, cond.Values[0])
		hi, okHi := compare(value, cond.Values[1])
		return okLo && okHi && lo >= 0 && hi <= 0
	case core.OpIn:
		for _, candidate := range cond.Values {
			if equal(value, candidate) {
				return true
			}
		}
		return false
	case core.OpNotIn:
		for _, candidate := range cond.Values {
			if equal(value, candidate) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Apply filters, sorts, and paginates records per the directives. The
// input slice is not mutated.
func Apply(records []core.Record, dir core.Directives) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, rec := range records {
		if Matches(rec, dir.Conditions) {
			out = append(out, rec)
		}
	}

	if len(dir.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, s := range dir.Sort {
				cmp, ok := compare(out[i][s.Column], out[j][s.Column])
				if !ok || cmp == 0 {
					continue
				}
				if s.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if dir.Skip > 0 {
		if dir.Skip >= len(out) {
			return nil
		}
		out = out[dir.Skip:]
	}
	if dir.Take > 0 && dir.Take < len(out) {
		out = out[:dir.Take]
	}
	return out
}

// equal compares loosely across the numeric representations a record value
// may take after serialization round trips.
func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	return a == b
}

// compare orders two values when both coerce to numbers or both to
// strings. Booleans order false < true.
func compare(a, b interface{}) (int, bool) {
	if fa, okA := asNumber(a); okA {
		if fb, okB := asNumber(b); okB {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	ba, okA := a.(bool)
	bb, okB := b.(bool)
	if okA && okB {
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringPair(a, b interface{}) (string, string, bool) {
	sa, okA := a.(string)
	sb, okB := b.(string)
	return sa, sb, okA && okB
}
