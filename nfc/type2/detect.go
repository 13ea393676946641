package type2

// GetVersion is the NTAG/Ultralight EV1 GET_VERSION command byte.
const GetVersion = 0x60

// ModelFromVersion identifies the model from a GET_VERSION response.
//
// Response layout for NTAG/Ultralight EV1:
//
//	Byte 0: Fixed header 0x00
//	Byte 1: Vendor ID (0x04 = NXP)
//	Byte 2: Product type (0x03 = Ultralight, 0x04 = NTAG)
//	Byte 3: Product subtype
//	Byte 4: Major version
//	Byte 5: Minor version
//	Byte 6: Storage size
//	Byte 7: Protocol type
func ModelFromVersion(resp []byte) (Model, bool) {
	if len(resp) < 8 || resp[1] != 0x04 {
		return Model{}, false
	}

	switch resp[2] {
	case 0x03:
		return Ultralight, true
	case 0x04:
		switch resp[6] {
		case 0x0F:
			return NTAG213, true
		case 0x11:
			return NTAG215, true
		case 0x13:
			return NTAG216, true
		}
	}
	return Model{}, false
}

// IsUltralightATR reports whether a PC/SC contactless ATR announces a
// MIFARE Ultralight family card, which includes NTAG21x. The card name
// byte follows the PC/SC part 3 RID and standard bytes in the historical
// bytes: 80 4F 0C A0 00 00 03 06 03 00 XX.
func IsUltralightATR(atr []byte) bool {
	for i := 0; i+11 < len(atr); i++ {
		if atr[i] == 0x80 && atr[i+1] == 0x4F &&
			atr[i+3] == 0xA0 && atr[i+4] == 0x00 && atr[i+5] == 0x00 &&
			atr[i+6] == 0x03 && atr[i+7] == 0x06 {
			switch atr[i+10] {
			case 0x03, 0x05: // Ultralight, Ultralight C
				return true
			}
			return false
		}
	}
	return false
}
