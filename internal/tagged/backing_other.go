//go:build !unix

package tagged

type mapping struct {
	tags  []uint32
	words []int64
}

func openMapping(path string, n int, useExisting bool) (*mapping, bool, error) {
	return nil, false, ErrPersistenceUnsupported
}

func (m *mapping) sync() error  { return nil }
func (m *mapping) close() error { return nil }
