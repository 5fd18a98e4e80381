// Package media models browser-style media streams and tracks for peerkit.
//
// # Overview
//
// A [Stream] is an ordered, deduplicated collection of [Track] handles that
// announces membership changes through OnAddTrack and OnRemoveTrack. Each
// track announces its native end-of-life through OnEnded. Track kinds reuse
// pion's webrtc.RTPCodecType so tracks can be paired with pion transceivers
// directly.
//
// # Ending versus stopping
//
// Tracks follow browser semantics:
//
//   - End marks the track ended because its source went away (the remote
//     peer stopped sending, the user pressed the native "stop sharing"
//     control). The ended event fires exactly once.
//
//   - Stop marks the track ended because the local application released it.
//     No ended event fires; the caller already knows.
//
// # Audio taps
//
// [AudioTrack] carries decoded PCM. Producers call Push; observers such as
// the voice activity meter subscribe with OnSamples. [RemoteAudioTrack]
// feeds an AudioTrack from a pion remote track by decoding Opus RTP payloads
// with github.com/pion/opus.
package media
