// Package audiomix combines the audio tracks of every connected peer into a
// single stream and drives its playback.
//
// # Overview
//
// The [Aggregator] watches a reactive map of peer records. Each peer's stream
// is followed by its own trackset.Tracker; whenever any peer joins or
// leaves, or any peer stream gains, loses or ends a track, the aggregator
// flattens all audio tracks into one list. The combined stream is replaced
// (never mutated) whenever that membership changes, and is nil when no peer
// carries audio:
//
//	peers := signal.NewValue(map[string]*audiomix.Peer{})
//	agg := audiomix.NewAggregator(peers, nil)
//	defer agg.Close()
//
//	agg.HasAudio().Subscribe(func(ok bool) { fmt.Println("audio:", ok) })
//	peers.Set(map[string]*audiomix.Peer{"alice": audiomix.NewPeer("alice", stream)})
//
// # Playback
//
// A [Player] attaches every new combined stream to an [Output] and asks it to
// play. Playback failures are logged and reported through the play state but
// never stop the player. The output's own playing and pause notifications are
// authoritative for [Player.Playing].
package audiomix
