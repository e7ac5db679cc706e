package bootstrap

import (
	"crypto/rand"
	"math/big"
)

const (
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"
	allChars   = upperChars + lowerChars + digitChars
)

// RCONPasswordLength is the size of generated remote console secrets.
const RCONPasswordLength = 20

// GeneratePassword returns a random password of the given length
// containing at least one upper-case letter, one lower-case letter and
// one digit. The guaranteed characters are shuffled into random
// positions so they never cluster at the front.
func GeneratePassword(length int) string {
	if length < 3 {
		length = 3
	}
	buf := make([]byte, length)
	buf[0] = pick(upperChars)
	buf[1] = pick(lowerChars)
	buf[2] = pick(digitChars)
	for i := 3; i < length; i++ {
		buf[i] = pick(allChars)
	}
	// Fisher-Yates
	for i := length - 1; i > 0; i-- {
		j := randInt(i + 1)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func pick(set string) byte {
	return set[randInt(len(set))]
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// out of entropy only on a broken platform; degrade to the
		// first element rather than panic mid-provisioning
		return 0
	}
	return int(v.Int64())
}
