// Package noise provides the Noise IK handshake that secures raw frame
// streams, built on the flynn/noise library with Curve25519 key exchange,
// ChaCha20-Poly1305 encryption and SHA256 hashing.
//
// The frame sender initiates and must already know the receiver's static
// public key. The receiver learns and can verify the sender's key from the
// first message:
//
//	sender, _ := noise.NewIKHandshake(senderPriv, receiverPub, noise.Initiator)
//	msg1, _ := sender.Initiate(nil)
//	// ... send msg1, receive msg2 ...
//	_, err := sender.Finish(msg2)
//	send, recv, _ := sender.GetCipherStates()
//
// Both sides must have completed the handshake before GetCipherStates
// returns usable states.
package noise
