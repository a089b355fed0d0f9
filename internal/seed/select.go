package seed

// Select picks between two candidate seeds for the same sequence. The one
// spanning more of the model is kept; on a tie the second is kept, it comes
// from the base-level aligner. The other is returned so it can be reported.
func Select(first, second Seed) (kept, overwritten Seed) {
	if first.MdlSpan() > second.MdlSpan() {
		return first, second
	}
	return second, first
}
