// Package analysis characterises stored runs.
//
//   - [Loop]: coercive field, remanence and enclosed area of a hysteresis loop
//   - [Spectrum]: power spectrum of a sampled magnetisation trace
//
// Rows are taken in emission order, as [storage.Store.LoadPoints] returns
// them.
package analysis
