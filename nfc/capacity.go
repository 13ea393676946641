package nfc

// Capacity is the encoded size of a prospective text write against a tag
// limit.
type Capacity struct {
	Used      int // Encoded NDEF message size in bytes
	Max       int
	Remaining int // Negative when the text does not fit
	Fits      bool
}

// MeasureText reports how much of a maxSize-byte tag a single Text record
// message would occupy. An invalid language code reports Fits=false.
func MeasureText(language, text string, maxSize int) Capacity {
	if language == "" {
		language = DefaultLanguage
	}
	c := Capacity{Max: maxSize}

	msg, err := NewTextMessage(language, text)
	if err != nil {
		// Count the bytes anyway so the counter still moves.
		c.Used = 1 + len(language) + len(text) + 4
		c.Remaining = maxSize - c.Used
		return c
	}

	c.Used = msg.EncodedLen()
	c.Remaining = maxSize - c.Used
	c.Fits = c.Remaining >= 0
	return c
}
