// Package diff implements the algebra over sparse bit differences.
//
// # Overview
//
// A Diff maps bit coordinates to the value they hold in a sample image, for
// exactly those bits that differ from an implicit baseline image. A bit
// absent from the map equals the baseline. Diffs come from comparing two
// configuration images; the engine then shrinks them by subtracting the
// contributions of already classified attributes until nothing is left.
//
// Every operation that can detect an inconsistency returns a
// *violation.Violation instead of guessing. A Diff that is not empty when
// the caller expects it to be is reported by AssertEmpty.
//
// # Usage
//
//	d, err := store.GetDiff(key)
//	if err != nil {
//		return err
//	}
//	// Remove what the MODE attribute contributes going from LATCH to FF.
//	if err := d.ApplyEnumDiff(mode, "LATCH", "FF"); err != nil {
//		return err
//	}
//	item, err := classify.XlatBit(d)
//
// Diff values are not safe for concurrent mutation.
package diff
