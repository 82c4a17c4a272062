// Package frame turns capture surfaces and picked photo files into encoded
// images ready for the biometry search endpoint.
//
// The Sampler rasterizes the current frame of a live surface into a reused
// off-screen RGBA buffer at native size and re-encodes it as JPEG. Photos are
// validated and passed through unchanged. Both paths yield an Image whose
// Payload is plain base64 with no data-URI header.
package frame
