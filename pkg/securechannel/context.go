package securechannel

import (
	"fmt"
	"sync"
	"time"
)

// SecurityContext is the per-channel cryptographic and token state (spec
// §3 "Security context"). It is built empty, populated during the OPN
// handshake, rolls current keys into prec_* on renewal, and is wiped on
// CloseSecureChannel or transport loss.
type SecurityContext struct {
	mu sync.RWMutex

	crypto CryptoProvider
	mode   SecurityMode
	policy string

	currentToken SecurityToken
	precToken    SecurityToken

	currentNonce []byte // this side's most recently sent nonce
	currentKeys  KeySets
	precKeys     KeySets

	lastSeqNumSent     uint32
	lastSeqNumReceived uint32
}

// NewSecurityContext returns an empty context bound to crypto for the
// given mode/policy. The token fields stay zero-valued until OPN
// populates them.
func NewSecurityContext(crypto CryptoProvider, mode SecurityMode, policyURI string) *SecurityContext {
	return &SecurityContext{crypto: crypto, mode: mode, policy: policyURI}
}

// Mode and PolicyURI report the negotiated security mode and policy.
func (c *SecurityContext) Mode() SecurityMode { c.mu.RLock(); defer c.mu.RUnlock(); return c.mode }
func (c *SecurityContext) PolicyURI() string  { c.mu.RLock(); defer c.mu.RUnlock(); return c.policy }

// SetMode records the mode/policy an OPN request negotiated. The server
// side does not know either until it has decoded the first OPN chunk's
// asymmetric security header, so its context starts out with a
// placeholder mode that this corrects once the handshake completes.
func (c *SecurityContext) SetMode(mode SecurityMode, policyURI string) {
	c.mu.Lock()
	c.mode = mode
	c.policy = policyURI
	c.mu.Unlock()
}

// Crypto returns the bound CryptoProvider.
func (c *SecurityContext) Crypto() CryptoProvider { return c.crypto }

// CurrentToken returns the active SecurityToken.
func (c *SecurityContext) CurrentToken() SecurityToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentToken
}

// InstallToken installs a freshly negotiated token and its derived key
// sets as the new current state. If a current token already exists (a
// renewal), it is moved to the previous-token slot first so messages
// already in flight under it keep verifying during the overlap window.
func (c *SecurityContext) InstallToken(token SecurityToken, keys KeySets) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentToken.Valid() {
		c.precToken = c.currentToken
		c.precKeys = c.currentKeys
	}
	c.currentToken = token
	c.currentKeys = keys
}

// KeysForToken resolves the KeySet pair to use for an incoming message's
// token_id: the current token, or the previous token if it is still
// within its overlap window. Returns an error if the token_id matches
// neither, or matches the previous token but that token has expired.
func (c *SecurityContext) KeysForToken(tokenID uint32, now time.Time) (KeySets, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentToken.Valid() && c.currentToken.TokenID == tokenID {
		return c.currentKeys, nil
	}
	if c.precToken.Valid() && c.precToken.TokenID == tokenID {
		if c.precToken.Expired(now) {
			return KeySets{}, fmt.Errorf("securechannel: token %d expired", tokenID)
		}
		return c.precKeys, nil
	}
	return KeySets{}, fmt.Errorf("securechannel: unknown token %d", tokenID)
}

// SetCurrentNonce records the nonce this side most recently sent, used
// as an input to the next key derivation.
func (c *SecurityContext) SetCurrentNonce(nonce []byte) {
	c.mu.Lock()
	c.currentNonce = nonce
	c.mu.Unlock()
}

// CurrentNonce returns the nonce this side most recently sent.
func (c *SecurityContext) CurrentNonce() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentNonce
}

// NextSendSeqNum advances and returns this channel's outgoing sequence
// number, applying the 1024-wrap rule.
func (c *SecurityContext) NextSendSeqNum() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeqNumSent = NextSequenceNumber(c.lastSeqNumSent)
	return c.lastSeqNumSent
}

// ValidateReceivedSeqNum checks got against the last accepted received
// sequence number and, if valid, records it as the new baseline.
func (c *SecurityContext) ValidateReceivedSeqNum(got uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ValidateSequenceNumber(c.lastSeqNumReceived, got) {
		return fmt.Errorf("securechannel: sequence number %d does not follow %d", got, c.lastSeqNumReceived)
	}
	c.lastSeqNumReceived = got
	return nil
}

// ResetReceivedSeqNum re-establishes the received sequence-number
// baseline to whatever an OPN message carried (spec §4.5 step 6: "OPN
// re-establishes last_seq_num_received to whatever the peer sent").
func (c *SecurityContext) ResetReceivedSeqNum(got uint32) {
	c.mu.Lock()
	c.lastSeqNumReceived = got
	c.mu.Unlock()
}

// Destroy wipes all key material held by this context. Called on
// CloseSecureChannel or transport loss.
func (c *SecurityContext) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentKeys.Wipe()
	c.precKeys.Wipe()
	clear(c.currentNonce)
	c.currentToken = SecurityToken{}
	c.precToken = SecurityToken{}
}
