// Command imgcat reconciles a versioned imaging catalog against its upstream
// sources.
//
// Typical use:
//
//	imgcat config init
//	imgcat preflight
//	imgcat run 7
//	imgcat status 7
//	imgcat export 7
//
// A run of an unfinished version resumes where the previous attempt stopped;
// "imgcat prune" discards an unfinished version instead.
package main
