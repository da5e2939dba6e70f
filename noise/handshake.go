package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/opd-ai/rtpscreen/crypto"
)

var (
	// ErrHandshakeNotComplete indicates handshake is still in progress
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrHandshakeComplete indicates handshake is already complete
	ErrHandshakeComplete = errors.New("handshake already complete")
	// ErrWrongRole indicates a message operation not valid for this side
	ErrWrongRole = errors.New("operation not valid for handshake role")
)

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator starts the handshake (knows peer's static key)
	Initiator HandshakeRole = iota
	// Responder responds to handshake initiation
	Responder
)

// CipherSuite is the suite used by every secure stream.
var CipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// IKHandshake implements the Noise IK pattern. The frame sender is the
// initiator and must know the receiver's static public key in advance.
//
// Message flow:
//
//	-> e, es, s, ss
//	<- e, ee, se
type IKHandshake struct {
	role       HandshakeRole
	state      *noise.HandshakeState
	sendCipher *noise.CipherState
	recvCipher *noise.CipherState
	complete   bool
}

// NewIKHandshake creates a new IK pattern handshake.
// staticPrivKey is our long-term private key (32 bytes).
// peerPubKey is peer's long-term public key (32 bytes, nil for responder).
func NewIKHandshake(staticPrivKey, peerPubKey []byte, role HandshakeRole) (*IKHandshake, error) {
	if len(staticPrivKey) != crypto.KeySize {
		return nil, fmt.Errorf("static private key must be 32 bytes, got %d", len(staticPrivKey))
	}
	if role == Initiator && len(peerPubKey) != crypto.KeySize {
		return nil, fmt.Errorf("initiator requires peer public key (32 bytes), got %d", len(peerPubKey))
	}

	var secret [crypto.KeySize]byte
	copy(secret[:], staticPrivKey)
	keyPair, err := crypto.FromSecretKey(secret)
	crypto.ZeroBytes(secret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive keypair: %w", err)
	}

	staticKey := noise.DHKey{
		Private: append([]byte(nil), keyPair.Private[:]...),
		Public:  append([]byte(nil), keyPair.Public[:]...),
	}
	crypto.ZeroBytes(keyPair.Private[:])

	config := noise.Config{
		CipherSuite:   CipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeIK,
		Initiator:     role == Initiator,
		StaticKeypair: staticKey,
	}
	if role == Initiator {
		config.PeerStatic = append([]byte(nil), peerPubKey...)
	}

	state, err := noise.NewHandshakeState(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	return &IKHandshake{role: role, state: state}, nil
}

// Initiate produces the initiator's first message.
func (ik *IKHandshake) Initiate(payload []byte) ([]byte, error) {
	if ik.role != Initiator {
		return nil, ErrWrongRole
	}
	if ik.complete {
		return nil, ErrHandshakeComplete
	}

	message, _, _, err := ik.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("initiator write failed: %w", err)
	}
	return message, nil
}

// Respond reads the initiator's message and produces the reply, completing
// the responder's side. It returns the reply and the initiator's payload.
func (ik *IKHandshake) Respond(received, payload []byte) ([]byte, []byte, error) {
	if ik.role != Responder {
		return nil, nil, ErrWrongRole
	}
	if ik.complete {
		return nil, nil, ErrHandshakeComplete
	}

	peerPayload, _, _, err := ik.state.ReadMessage(nil, received)
	if err != nil {
		return nil, nil, fmt.Errorf("responder read failed: %w", err)
	}

	message, initToResp, respToInit, err := ik.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("responder write failed: %w", err)
	}

	ik.recvCipher = initToResp
	ik.sendCipher = respToInit
	ik.complete = true
	return message, peerPayload, nil
}

// Finish reads the responder's reply, completing the initiator's side.
func (ik *IKHandshake) Finish(message []byte) ([]byte, error) {
	if ik.role != Initiator {
		return nil, ErrWrongRole
	}
	if ik.complete {
		return nil, ErrHandshakeComplete
	}

	payload, initToResp, respToInit, err := ik.state.ReadMessage(nil, message)
	if err != nil {
		return nil, fmt.Errorf("initiator read response failed: %w", err)
	}

	ik.sendCipher = initToResp
	ik.recvCipher = respToInit
	ik.complete = true
	return payload, nil
}

// IsComplete returns true if handshake is finished and cipher states are available.
func (ik *IKHandshake) IsComplete() bool {
	return ik.complete
}

// GetCipherStates returns the send and receive cipher states after successful handshake.
func (ik *IKHandshake) GetCipherStates() (*noise.CipherState, *noise.CipherState, error) {
	if !ik.complete {
		return nil, nil, ErrHandshakeNotComplete
	}
	return ik.sendCipher, ik.recvCipher, nil
}

// GetRemoteStaticKey returns the peer's static public key after successful handshake.
func (ik *IKHandshake) GetRemoteStaticKey() ([]byte, error) {
	if !ik.complete {
		return nil, ErrHandshakeNotComplete
	}
	return append([]byte(nil), ik.state.PeerStatic()...), nil
}
