package secret

// base58Alphabet is the Bitcoin-style alphabet (no 0/O/I/l ambiguity), used
// for compact, readable secret display IDs.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// encodeBase58 encodes an 8-byte slice to a base58 string.
func encodeBase58(data []byte) string {
	if len(data) != 8 {
		panic("encodeBase58 requires exactly 8 bytes")
	}

	var num [8]byte
	copy(num[:], data)

	var result []byte
	for i := 0; i < 8; i++ {
		var remainder byte
		for j := 0; j < 8; j++ {
			temp := int(num[j]) + int(remainder)*256
			num[j] = byte(temp / 58)
			remainder = byte(temp % 58)
		}
		result = append([]byte{base58Alphabet[remainder]}, result...)
	}

	for i := 0; i < len(data); i++ {
		if data[i] != 0 {
			break
		}
		result = append([]byte{'1'}, result...)
	}

	return string(result)
}
