package store

import (
	"context"
	"strconv"
	"sync"
)

// Memory is an in-process tree with Realtime Database write semantics.
// Tests use it in place of a live database.
type Memory struct {
	mu        sync.Mutex
	root      map[string]interface{}
	failGet   map[string]error
	failWrite map[string]error
	writes    []string
}

func NewMemory() *Memory {
	return &Memory{
		root:      make(map[string]interface{}),
		failGet:   make(map[string]error),
		failWrite: make(map[string]error),
	}
}

// FailGet makes every Get of exactly path return err.
func (m *Memory) FailGet(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet[Join(path)] = err
}

// FailWrite makes every Set, Update or Delete touching exactly path return err.
func (m *Memory) FailWrite(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[Join(path)] = err
}

// Writes returns the paths written so far, in order.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func (m *Memory) Get(_ context.Context, path string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = Join(path)
	if err := m.failGet[path]; err != nil {
		return err
	}

	var node interface{} = m.root
	for _, seg := range split(path) {
		switch x := node.(type) {
		case map[string]interface{}:
			node = x[seg]
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(x) {
				return nil
			}
			node = x[i]
		default:
			return nil
		}
		if node == nil {
			return nil
		}
	}
	return convert(node, v)
}

func (m *Memory) Set(_ context.Context, path string, v interface{}) error {
	val, err := normalize(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path = Join(path)
	if err := m.failWrite[path]; err != nil {
		return err
	}
	m.put(path, val)
	return nil
}

func (m *Memory) Update(_ context.Context, path string, values map[string]interface{}) error {
	vals := make(map[string]interface{}, len(values))
	for k, v := range values {
		val, err := normalize(v)
		if err != nil {
			return err
		}
		vals[Join(path, k)] = val
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWrite[Join(path)]; err != nil {
		return err
	}
	for p := range vals {
		if err := m.failWrite[p]; err != nil {
			return err
		}
	}
	for p, val := range vals {
		m.put(p, val)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = Join(path)
	if err := m.failWrite[path]; err != nil {
		return err
	}
	m.put(path, nil)
	return nil
}

func (m *Memory) put(path string, val interface{}) {
	m.writes = append(m.writes, path)
	root, ok := putAt(m.root, split(path), val).(map[string]interface{})
	if !ok {
		root = make(map[string]interface{})
	}
	m.root = root
}

// putAt writes val at segs below node and returns the new node, nil once it
// holds nothing. Lists are addressed by index; removing an element other than
// the last turns the list into an object keyed by the remaining indices, which
// is how the Realtime Database stores sparse arrays.
func putAt(node interface{}, segs []string, val interface{}) interface{} {
	if len(segs) == 0 {
		return val
	}
	key := segs[0]

	var obj map[string]interface{}
	switch x := node.(type) {
	case map[string]interface{}:
		obj = x
	case []interface{}:
		i, err := strconv.Atoi(key)
		if err == nil && i >= 0 && i < len(x) {
			child := putAt(x[i], segs[1:], val)
			if child != nil {
				x[i] = child
				return x
			}
			if i == len(x)-1 {
				if i == 0 {
					return nil
				}
				return x[:i]
			}
			x[i] = nil
		}
		obj = listToObject(x)
	default:
		if val == nil {
			return node
		}
		obj = make(map[string]interface{})
	}

	if child := putAt(obj[key], segs[1:], val); child != nil {
		obj[key] = child
	} else {
		delete(obj, key)
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}

func listToObject(l []interface{}) map[string]interface{} {
	obj := make(map[string]interface{}, len(l))
	for i, v := range l {
		if v != nil {
			obj[strconv.Itoa(i)] = v
		}
	}
	return obj
}
