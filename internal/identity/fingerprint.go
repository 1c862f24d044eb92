package identity

import "strconv"

// signalSeparator joins the signal tuple before hashing. Pipes do not occur
// in any of the signal values, so distinct tuples stay distinct after joining.
const signalSeparator = "|"

// Fingerprint derives a deterministic device identifier from the signal
// tuple. The signals are joined in fixed order and folded with a polynomial
// rolling hash (h = h*31 + c) over 32-bit signed arithmetic, then rendered
// as the lowercase hex of the absolute value. Pure and total: identical
// tuples always produce identical output, and the result is never empty,
// even for the all-empty tuple.
func Fingerprint(sig Signals) string {
	joined := sig.Display + signalSeparator +
		sig.Timezone + signalSeparator +
		sig.Language + signalSeparator +
		sig.Platform + signalSeparator +
		sig.UserAgent

	var h int32
	for _, r := range joined {
		h = h*31 + int32(r)
	}

	// Widen before negating so the minimum int32 keeps its magnitude.
	v := int64(h)
	if v < 0 {
		v = -v
	}

	return strconv.FormatInt(v, 16)
}
