package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	icrypto "github.com/jmcleod/ironshare/internal/crypto"
	"github.com/jmcleod/ironshare/internal/util"
)

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion = 1

// Purpose separates the key spaces of envelopes sealed for different uses.
// An envelope sealed for one purpose never opens under another.
type Purpose int

const (
	PurposeEntry Purpose = iota + 1
	PurposeSession
)

func (p Purpose) String() string {
	switch p {
	case PurposeEntry:
		return "entry"
	case PurposeSession:
		return "session"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// Envelope is an AES-256-GCM ciphertext bundle. The key is derived from a
// secret and Salt; IV and Tag are stored as separate fields.
type Envelope struct {
	Ver        int    `json:"ver"`
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	Tag        []byte `json:"tag"`
}

// Clone returns a deep copy of the envelope.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	return &Envelope{
		Ver:        e.Ver,
		Ciphertext: util.CopyBytes(e.Ciphertext),
		Salt:       util.CopyBytes(e.Salt),
		IV:         util.CopyBytes(e.IV),
		Tag:        util.CopyBytes(e.Tag),
	}
}

// Validator is implemented by payload types that can check their own
// structure after decoding.
type Validator interface {
	Validate() error
}

func aadFor(purpose Purpose, salt []byte, ver int) ([]byte, error) {
	switch purpose {
	case PurposeEntry:
		return icrypto.AADEntry(salt, ver), nil
	case PurposeSession:
		return icrypto.AADSession(salt, ver), nil
	default:
		return nil, fmt.Errorf("unknown envelope purpose %d", int(purpose))
	}
}

// Seal encrypts plaintext under a key derived from secret and a fresh salt.
// A fresh IV is drawn for every call.
func Seal(plaintext, secret []byte, purpose Purpose) (*Envelope, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	iv, err := util.RandomBytes(util.GCMNonceSize)
	if err != nil {
		return nil, err
	}
	aad, err := aadFor(purpose, salt, EnvelopeVersion)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	ciphertext, tag, err := util.SealAESGCM(plaintext, key, iv, aad)
	if err != nil {
		return nil, fmt.Errorf("sealing %s envelope: %w", purpose, err)
	}

	return &Envelope{
		Ver:        EnvelopeVersion,
		Ciphertext: ciphertext,
		Salt:       salt,
		IV:         iv,
		Tag:        tag,
	}, nil
}

// Open re-derives the key from the envelope's own salt, verifies the tag and
// decrypts. Tag failures are reported as ErrIntegrity; structurally invalid
// envelopes as ErrFormat.
func Open(env *Envelope, secret []byte, purpose Purpose) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	aad, err := aadFor(purpose, env.Salt, env.Ver)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(secret, env.Salt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	plaintext, err := util.OpenAESGCM(env.Ciphertext, env.Tag, key, env.IV, aad)
	if errors.Is(err, util.ErrAuthFailed) {
		return nil, fmt.Errorf("opening %s envelope: %w", purpose, ErrIntegrity)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s envelope: %w", purpose, err)
	}
	return plaintext, nil
}

// SealJSON serialises v as JSON and seals the result.
func SealJSON(v any, secret []byte, purpose Purpose) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", purpose, err)
	}
	defer util.WipeBytes(plaintext)
	return Seal(plaintext, secret, purpose)
}

// OpenJSON opens env and strictly decodes the plaintext into v. If v
// implements Validator its Validate method must also pass. Decode and
// validation failures are reported as ErrFormat.
func OpenJSON(env *Envelope, secret []byte, purpose Purpose, v any) error {
	plaintext, err := Open(env, secret, purpose)
	if err != nil {
		return err
	}
	defer util.WipeBytes(plaintext)

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", purpose, ErrFormat)
	}
	if dec.More() {
		return fmt.Errorf("decoding %s payload: trailing data: %w", purpose, ErrFormat)
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%s payload: %v: %w", purpose, err, ErrFormat)
		}
	}
	return nil
}

func checkEnvelope(env *Envelope) error {
	switch {
	case env == nil:
		return fmt.Errorf("nil envelope: %w", ErrFormat)
	case env.Ver != EnvelopeVersion:
		return fmt.Errorf("unsupported envelope version %d: %w", env.Ver, ErrFormat)
	case len(env.Salt) < minSaltSize:
		return fmt.Errorf("envelope salt too short: %w", ErrFormat)
	case len(env.IV) != util.GCMNonceSize:
		return fmt.Errorf("envelope iv must be %d bytes: %w", util.GCMNonceSize, ErrFormat)
	case len(env.Tag) != util.GCMTagSize:
		return fmt.Errorf("envelope tag must be %d bytes: %w", util.GCMTagSize, ErrFormat)
	}
	return nil
}
