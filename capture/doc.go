// Package capture owns the local outgoing media.
//
// # Overview
//
// A Coordinator holds two inputs, the camera/microphone capture stream and
// the screen-share stream, and derives the single active local stream from
// them, screen share first:
//
//	coord := capture.NewCoordinator()
//	coord.Active().Subscribe(func(s *media.Stream) {
//	    // renegotiate outgoing tracks
//	})
//	coord.SetCapture(camera)
//	coord.SetScreenShare(screen) // stops every camera track first
//
// At most one hardware capture is live at a time: changing the screen share
// stops and clears the capture stream, and replacing either input stops the
// tracks of the stream it replaces. When a share track ends natively it is
// removed from the share stream; once none remain the share and the active
// stream are cleared.
package capture
