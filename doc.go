// Package peerkit is the support layer of a peer-to-peer real-time
// communication client.
//
// It sits between an application and its WebRTC connections and covers what
// a call needs besides the connections themselves: deciding which ICE servers
// are usable, combining the audio of every remote peer, detecting who is
// speaking, measuring transfer speed, owning the local camera and screen
// streams, and running compression jobs off the caller's goroutine.
//
// # Getting Started
//
//	cfg, err := config.Load("peerkit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Logging.Apply(logrus.StandardLogger())
//
//	rt, err := peerkit.New(peerkit.OptionsFromConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Kill()
//
//	servers := rt.ReachableServers(ctx)
//
// # Components
//
//   - [probe]: ICE server connectivity probing
//   - [trackset]: live view of one stream's track set
//   - [audiomix]: combined remote audio and its player
//   - [vad]: voice activity meter
//   - [file]: file transfers and their speed estimator
//   - [capture]: local capture and screen share coordination
//   - [codec]: background inflate, deflate and archive workers
//
// The [Runtime] type wires these together with shared [metrics] and
// [config]. Each package is usable on its own.
//
// # Reactive Values
//
// Components publish their state through [signal.Value]. Subscribers run
// synchronously on the goroutine that changed the value, outside any
// component lock, and may call back into the component.
package peerkit
