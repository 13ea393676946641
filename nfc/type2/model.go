package type2

import "strings"

// Model describes the memory layout of an NFC Forum Type 2 tag.
type Model struct {
	Name string
	// DataSize is the size of the user data area in bytes, starting at
	// page 4.
	DataSize int
	// CCSize is the data area size byte written to the capability
	// container (DataSize / 8).
	CCSize byte
	// DynLockPage is the page holding the dynamic lock bytes, or 0 for
	// tags without them.
	DynLockPage byte
}

// Supported models.
var (
	Ultralight = Model{Name: "MIFARE Ultralight", DataSize: 48, CCSize: 0x06}
	NTAG213    = Model{Name: "NTAG213", DataSize: 144, CCSize: 0x12, DynLockPage: 0x28}
	NTAG215    = Model{Name: "NTAG215", DataSize: 504, CCSize: 0x3E, DynLockPage: 0x82}
	NTAG216    = Model{Name: "NTAG216", DataSize: 872, CCSize: 0x6D, DynLockPage: 0xE2}
)

var models = []Model{Ultralight, NTAG213, NTAG215, NTAG216}

// ModelByName looks up a model by name, ignoring case.
func ModelByName(name string) (Model, bool) {
	for _, m := range models {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Model{}, false
}

// ModelForCC returns the model whose capability container size byte is
// size. Tags formatted by other tools may use sizes of their own; ok is
// false for those.
func ModelForCC(size byte) (Model, bool) {
	for _, m := range models {
		if m.CCSize == size {
			return m, true
		}
	}
	return Model{}, false
}

// MaxMessageSize is the largest NDEF message a blank tag of this model can
// take.
func (m Model) MaxMessageSize() int {
	return maxMessageSize(m.DataSize)
}

// dataPages is the number of pages in the data area.
func (m Model) dataPages() int {
	return (m.DataSize + pageSize - 1) / pageSize
}
