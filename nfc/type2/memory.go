package type2

import (
	"fmt"
	"sync"
)

// MemoryPages is an in-memory PageIO holding a Type 2 tag image. It backs
// the simulated reader and the tests.
//
// Writes honour the tag's one-time-programmable areas: page 2 lock bytes and
// page 3 are OR-ed rather than replaced, and pages covered by set static
// lock bits reject writes.
type MemoryPages struct {
	mu     sync.Mutex
	pages  [][4]byte
	open   bool
	reads  int
	writes int

	// FailWrite makes WritePage fail for the given page.
	FailWrite map[byte]error
}

// NewMemoryPages creates a blank tag image for model. With formatted set the
// capability container and an empty NDEF TLV are already in place, as on
// factory-fresh NTAG21x tags.
func NewMemoryPages(model Model, formatted bool) *MemoryPages {
	total := firstDataPage + model.dataPages()
	if model.DynLockPage != 0 && int(model.DynLockPage) >= total {
		total = int(model.DynLockPage) + 1
	}
	m := &MemoryPages{pages: make([][4]byte, total)}
	if formatted {
		m.pages[pageCC] = [4]byte{ccMagic, ccVersion, model.CCSize, accessOpen}
		m.pages[firstDataPage] = [4]byte{0x03, 0x00, 0xFE, 0x00}
	}
	return m
}

func (m *MemoryPages) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MemoryPages) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return fmt.Errorf("memory pages not open")
	}
	m.open = false
	return nil
}

func (m *MemoryPages) ReadPage(page byte) ([4]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return [4]byte{}, fmt.Errorf("memory pages not open")
	}
	if int(page) >= len(m.pages) {
		return [4]byte{}, fmt.Errorf("page %d out of range", page)
	}
	m.reads++
	return m.pages[page], nil
}

func (m *MemoryPages) WritePage(page byte, data [4]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return fmt.Errorf("memory pages not open")
	}
	if int(page) >= len(m.pages) || page < pageLock {
		return fmt.Errorf("page %d not writable", page)
	}
	if err := m.FailWrite[page]; err != nil {
		return err
	}
	if m.lockedLocked(page) {
		return fmt.Errorf("page %d is locked", page)
	}

	m.writes++
	if page == pageLock || page == pageCC {
		for i := range data {
			m.pages[page][i] |= data[i]
		}
		return nil
	}
	m.pages[page] = data
	return nil
}

// lockedLocked reports whether the static lock bits cover page. Caller
// holds mu.
func (m *MemoryPages) lockedLocked(page byte) bool {
	lock := m.pages[pageLock]
	switch {
	case page == pageCC:
		return lock[2]&0x08 != 0
	case page >= 4 && page <= 7:
		return lock[2]&(1<<(page)) != 0
	case page >= 8 && page <= 15:
		return lock[3]&(1<<(page-8)) != 0
	}
	return false
}

// Page returns a copy of one page.
func (m *MemoryPages) Page(page byte) [4]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[page]
}

// Writes returns the number of successful page writes.
func (m *MemoryPages) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Reads returns the number of page reads.
func (m *MemoryPages) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
