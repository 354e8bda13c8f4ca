// Package media holds the local playback surfaces a session keeps in sync.
package media

// Surface is a local media player. Positions are in seconds.
//
// Every state change, whether made by the user or through these methods,
// is reported to the observer. A call that changes nothing (Play on a playing
// surface) reports nothing.
type Surface interface {
	Play()
	Pause()
	Seek(t float64)
	Position() float64
	Paused() bool
	SetObserver(o Observer)
}

// Observer receives the surface's play, pause and seek notifications.
// Rejected reports that a Play, Pause or Seek call ("play", "pause" or
// "seek") did not take effect, so no notification for it will follow.
type Observer interface {
	Played()
	Paused()
	Seeked(position float64)
	Rejected(cmd string)
}
