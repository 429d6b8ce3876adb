// Package compute provides the execution backends the integration kernels
// run on.
//
//   - Serial: every phase over the whole chain on the calling goroutine
//   - Distributed: each phase split into contiguous worker domains
//   - Accelerator: device offload, built with -tags accel
//
// Kernels express a step as a sequence of phases. A phase reads shared
// state written by earlier phases and writes only its own index range, so
// distributed runs are bit-identical to serial ones.
//
//	ex := compute.NewDistributed(4)
//	err := ex.Run(n, computeFields, correct)
//
// The default build reports the accelerator as unavailable.
package compute
