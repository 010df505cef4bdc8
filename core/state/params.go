package state

import (
	"fmt"
	"strings"
)

func paramKey(name string) []byte {
	trimmed := strings.TrimSpace(name)
	buf := make([]byte, len(paramPrefix)+len(trimmed))
	copy(buf, paramPrefix)
	copy(buf[len(paramPrefix):], trimmed)
	return buf
}

// ParamStoreSet persists an opaque parameter blob under the provided name.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	if m == nil {
		return fmt.Errorf("params: state manager not initialised")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("params: name required")
	}
	if err := m.KVPut(paramKey(name), append([]byte(nil), value...)); err != nil {
		return fmt.Errorf("params: persist %s: %w", name, err)
	}
	return nil
}

// ParamStoreGet loads the parameter blob stored under the provided name. The
// boolean return value indicates whether the parameter was present.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	if m == nil {
		return nil, false, fmt.Errorf("params: state manager not initialised")
	}
	if strings.TrimSpace(name) == "" {
		return nil, false, fmt.Errorf("params: name required")
	}
	var value []byte
	ok, err := m.KVGet(paramKey(name), &value)
	if err != nil {
		return nil, false, fmt.Errorf("params: load %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}
