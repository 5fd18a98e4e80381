// Package limits provides centralized payload size constants and validation functions
// for the background codec workers and the file transfer layer.
//
// # Size Hierarchy
//
//   - MaxCompressedPayload (64MB): the largest compressed chunk the inflater accepts.
//
//   - MaxDecompressedSize (256MB): the cap on the output of one inflate job. Raw
//     DEFLATE has no length header, so the inflater enforces this while reading.
//
//   - MaxArchiveEntries / MaxArchiveSize: bounds on one archive request.
//
//   - MaxPathLength: the zip format limit for an entry name.
//
// # Validation Functions
//
// Each validation function wraps ErrTooLarge with the actual and allowed sizes:
//
//	if err := limits.ValidateCompressedPayload(data); err != nil {
//	    if errors.Is(err, limits.ErrTooLarge) {
//	        // reject the chunk
//	    }
//	}
package limits
