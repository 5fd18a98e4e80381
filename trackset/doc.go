// Package trackset keeps a live, deduplicated list of the tracks of a
// changing media stream.
//
// A [Tracker] observes a reactive stream handle. Whenever the handle changes
// it drops every listener attached to the previous stream, reseeds its list
// from the new stream's current tracks, and then follows addtrack,
// removetrack and per-track ended events:
//
//	source := signal.NewValue[*media.Stream](nil)
//	tracker := trackset.New(source)
//	defer tracker.Close()
//
//	tracker.Value().Subscribe(func(tracks []media.Track) {
//	    fmt.Println("tracks:", len(tracks))
//	})
//	source.Set(remoteStream)
//
// A track never stays in the set after its ended event fired.
package trackset
