package nostr

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// MaxDifficulty bounds the NIP-13 proof-of-work difficulty a caller may
// request; mining beyond this is refused rather than spinning forever.
const MaxDifficulty = 64

// CountLeadingZeroBits returns the number of leading zero bits of a hex id,
// the NIP-13 difficulty measure.
func CountLeadingZeroBits(idHex string) int {
	b, err := hex.DecodeString(idHex)
	if err != nil {
		return 0
	}
	count := 0
	for _, byt := range b {
		if byt == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if byt&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// MineNonce stamps a ["nonce", n, difficulty] tag and re-signs the event,
// incrementing n until the id's leading zero bits reach difficulty. difficulty
// above MaxDifficulty is refused as a sanity check against unbounded mining.
func MineNonce(clock Clock, secretKeyHex string, kind int, tags Tags, content string, difficulty int) (*Event, error) {
	if difficulty > MaxDifficulty {
		return nil, fmt.Errorf("nostr: pow difficulty %d exceeds max %d", difficulty, MaxDifficulty)
	}
	pubKey, err := GetPublicKey(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	baseTags := make(Tags, len(tags), len(tags)+1)
	copy(baseTags, tags)
	nonceIdx := len(baseTags)
	baseTags = append(baseTags, Tag{"nonce", "0", strconv.Itoa(difficulty)})

	var nonce uint64
	for {
		baseTags[nonceIdx] = Tag{"nonce", strconv.FormatUint(nonce, 10), strconv.Itoa(difficulty)}
		e := &Event{
			PubKey:    pubKey,
			CreatedAt: clock.Now(),
			Kind:      kind,
			Tags:      baseTags,
			Content:   content,
		}
		id := e.ComputeID()
		if CountLeadingZeroBits(id) >= difficulty {
			if err := e.Sign(secretKeyHex); err != nil {
				return nil, fmt.Errorf("sign mined event: %w", err)
			}
			return e, nil
		}
		nonce++
	}
}
