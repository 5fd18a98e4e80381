// Package file tracks file transfers between peers and estimates their
// throughput.
//
// # Overview
//
// The package provides three components:
//
//   - SpeedEstimator: converts a monotonically increasing byte counter into a
//     sliding-window average speed
//   - Transfer: the state of one file moving to or from a peer, with progress,
//     stall detection and an estimator fed by its byte counter
//   - Manager: a registry of transfers keyed by peer and transfer id
//
// # Speed Estimation
//
// Every SampleInterval the estimator reads the counter and, when time has
// passed and the counter did not go backwards, pushes delta/dt into a FIFO
// window of WindowSize speeds:
//
//	est := file.NewSpeedEstimator(counter.Load, file.SpeedOptions{})
//	est.Start()
//	defer est.Stop()
//
//	if bps, ok := est.Average(); ok {
//	    fmt.Printf("%.0f B/s\n", bps)
//	}
//
// A counter reset is dropped silently and the last-sample bookkeeping always
// advances, so a reset never corrupts the average.
//
// # Transfer States
//
//	TransferStatePending    // Waiting to start
//	TransferStateRunning    // In progress, estimator sampling
//	TransferStatePaused     // Temporarily paused, estimator stopped
//	TransferStateCompleted  // Successfully finished
//	TransferStateCancelled  // Cancelled by user or peer
//	TransferStateError      // Failed due to error or stall
//
// # Deterministic Testing
//
// Transfer and SpeedEstimator accept a TimeProvider; SpeedEstimator.Sample
// records one reading without the background ticker.
package file
