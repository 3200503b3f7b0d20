package protocol

// EncodeText and DecodeText exist only for symmetry with the JSON and
// binary codecs; a Q frame's payload is already the raw statement or
// message text, so there is nothing to transform.
func EncodeText(s string) []byte { return []byte(s) }
func DecodeText(payload []byte) string { return string(payload) }
