// Package camera owns the capture device for live scanning.
//
// Manager holds at most one capture session at a time. Starting a session
// while one is active tears the old one down first, and Stop always releases
// the device. The default backend runs ffmpeg against a V4L2 node and splits
// its MJPEG output into a latest-frame slot. HotplugWatcher listens for udev
// removals so an unplugged camera ends its session instead of leaving a dead
// surface behind.
package camera
