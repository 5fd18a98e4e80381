// Package codec runs compression and archiving off the caller's goroutine.
//
// # Overview
//
// Each codec is a Worker: a goroutine that receives request envelopes on one
// channel and answers every envelope with exactly one response envelope on
// another. Workers keep no state between messages. A Client posts requests
// and matches responses back to callers by envelope id:
//
//	inflater := codec.NewInflateClient(m)
//	defer inflater.Close()
//
//	resp, err := inflater.Do(ctx, codec.DecompressRequest{Data: chunk, Context: "chunk-7"})
//	if err != nil {
//	    return err // worker closed or ctx done
//	}
//	if resp.Error != "" {
//	    // malformed input; resp.Context is still "chunk-7"
//	}
//
// # Workers
//
//   - Inflater: raw DEFLATE decompression, output capped by limits.MaxDecompressedSize
//   - Deflater: raw DEFLATE compression of outgoing payloads
//   - Archiver: packs a folder's files into an uncompressed zip Blob
//
// Unarchive reverses the archiver on the receiving side, and Blob.Digest
// gives a BLAKE2b-256 checksum for integrity checks.
package codec
