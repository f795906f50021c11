package icrypto

import (
	"encoding/binary"
)

const (
	aadEntry   = "ENTRY"
	aadSession = "SESSION"
)

// AADEntry binds an entry envelope to its salt so that salts cannot be
// swapped between envelopes.
func AADEntry(salt []byte, ver int) []byte {
	return buildAAD(aadEntry, salt, ver)
}

// AADSession binds a session's sealed master secret to the session salt.
func AADSession(salt []byte, ver int) []byte {
	return buildAAD(aadSession, salt, ver)
}

func buildAAD(parts ...any) []byte {
	var res []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			res = appendLenPrefix(res, []byte(v))
		case []byte:
			res = appendLenPrefix(res, v)
		case uint64:
			b := make([]byte, 8)
			binary.BigEndian.PutUint64(b, v)
			res = append(res, b...)
		case int:
			b := make([]byte, 4)
			binary.BigEndian.PutUint32(b, uint32(v))
			res = append(res, b...)
		}
	}
	return res
}

func appendLenPrefix(b, data []byte) []byte {
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(data)))
	b = append(b, l...)
	b = append(b, data...)
	return b
}
