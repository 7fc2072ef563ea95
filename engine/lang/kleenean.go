package lang

// Kleenean is a three-valued boolean. It tracks facts that are only
// known on some code paths, such as whether a delay has happened before
// the current line.
type Kleenean int8

const (
	False   Kleenean = -1
	Unknown Kleenean = 0
	True    Kleenean = 1
)

// KleeneanOf converts a bool.
func KleeneanOf(b bool) Kleenean {
	if b {
		return True
	}
	return False
}

func (k Kleenean) IsTrue() bool    { return k == True }
func (k Kleenean) IsFalse() bool   { return k == False }
func (k Kleenean) IsUnknown() bool { return k == Unknown }

// Or is true if either side is true, false if both are false.
func (k Kleenean) Or(o Kleenean) Kleenean {
	if k > o {
		return k
	}
	return o
}

// And is false if either side is false, true if both are true.
func (k Kleenean) And(o Kleenean) Kleenean {
	if k < o {
		return k
	}
	return o
}

// Merge combines the states of two code paths: equal states survive,
// differing states become Unknown.
func (k Kleenean) Merge(o Kleenean) Kleenean {
	if k == o {
		return k
	}
	return Unknown
}

func (k Kleenean) String() string {
	switch k {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}
