// Package conversion implements the elementwise point-value transforms:
// log2(value+1) and asinh(value/factor). A Transformer rewrites a row-major
// float32 matrix in place and reports coarse progress every CheckpointEvery
// points, ending with exactly 1.0.
package conversion
