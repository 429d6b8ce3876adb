// Package viz renders sweep progress in the terminal and loop plots to disk.
//
//   - [SweepModel]: Bubble Tea view of a running experiment, fed by [Feed]
//   - [Canvas]: braille pixel canvas used for the live m(H) loop
//   - [SaveLoopPNG] and [LoopChart]: plots of a stored run
//   - [DispatchTable]: backend chosen for every integrator kind
package viz
