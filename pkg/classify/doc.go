// Package classify turns sampled Diffs into typed tile attributes.
//
// # Overview
//
// Each classifier takes the Diffs gathered for one attribute, after the
// contributions of already known attributes were subtracted, and derives
// the bits and encoding of the attribute:
//
//   - XlatBit, XlatBitWide, XlatBool: flags
//   - XlatBitvec, XlatEnumInt, XlatBitvecSparse: bit vectors
//   - XlatEnum: enumerations, with a choice of bit orderings
//
// Classifiers never guess. When the observations do not have the exact
// shape the classifier needs, it returns a *violation.Violation and the
// collection pass ends.
//
// ExtractBitvecVal and ExtractBitvecValPart go the other way: given a known
// vector attribute and a Diff, they read the value the Diff encodes.
//
// InferInvert and friends handle the case where the device can be read
// back: the polarity of each bit is taken from a register dump at a known
// default and every other dump is checked against it.
package classify
