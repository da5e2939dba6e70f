// Package stream sends frames over reliable byte streams.
//
// TCPFrameWriter writes each frame as a 4-byte little-endian byte count
// followed by the unpadded rows. With a peer public key the connection is
// first secured with a Noise IK handshake; every later write is split into
// length-prefixed ChaCha20-Poly1305 messages of at most 65535 bytes.
package stream
