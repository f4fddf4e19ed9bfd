package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PositionID computes the deterministic ID of a (user, token) position.
// Formula: SHA256(lower(user)|lower(token)), hex-encoded (64 characters).
func PositionID(user, token common.Address) string {
	data := fmt.Sprintf("%s|%s",
		strings.ToLower(user.Hex()),
		strings.ToLower(token.Hex()),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
